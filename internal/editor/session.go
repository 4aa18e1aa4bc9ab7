// Package editor holds the state of the recipe being edited and routes every
// mutation through the cost calculator, the manual-edit guard and the
// autosave engine.
package editor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/autosave"
	"github.com/sells-group/costing-cli/internal/clock"
	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/guard"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
)

var (
	// ErrNoRecipe is returned when no recipe is open.
	ErrNoRecipe = eris.New("editor: no recipe open")
	// ErrLineNotFound is returned for a line index outside the recipe.
	ErrLineNotFound = eris.New("editor: line not found")
	// ErrUnknownIngredient is returned when adding an ingredient missing
	// from the catalog.
	ErrUnknownIngredient = eris.New("editor: unknown ingredient")
	// ErrInvalidPortions is returned for a portion count of zero or less.
	ErrInvalidPortions = eris.New("editor: portions must be greater than zero")
	// ErrClosed is returned by Open after Close.
	ErrClosed = eris.New("editor: session closed")
)

// Loader reads recipes and the ingredient catalog from a backing store.
type Loader interface {
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	GetRecipeLines(ctx context.Context, id string) ([]model.LineItem, error)
	ListIngredients(ctx context.Context) ([]model.Ingredient, error)
}

// Backend is everything a Session needs from its store.
type Backend interface {
	Loader
	autosave.Saver
	autosave.ExistenceChecker
}

// PortionsSaver is implemented by backends that persist a recipe's portion
// count. SetPortions writes through to it when available.
type PortionsSaver interface {
	UpdatePortions(ctx context.Context, id string, portions float64) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock shared by the guard and the autosave engine.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithGuardWindow overrides the manual-edit window.
func WithGuardWindow(d time.Duration) Option {
	return func(s *Session) { s.window = d }
}

// WithCalculator sets the cost calculator.
func WithCalculator(c *cost.Calculator) Option {
	return func(s *Session) { s.calc = c }
}

// WithLogger sets the logger. Default zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithReloadAfterSave toggles the background reload requested after each
// successful save. Default: on.
func WithReloadAfterSave(on bool) Option {
	return func(s *Session) { s.reloadAfterSave = on }
}

// WithAutosave passes options through to the autosave engine.
func WithAutosave(opts ...autosave.Option) Option {
	return func(s *Session) { s.autosaveOpts = append(s.autosaveOpts, opts...) }
}

// entry is the per-recipe state kept in the session arena.
type entry struct {
	recipe  model.Recipe
	calcs   []model.CostCalculation
	dropped []string
	guard   *guard.Guard
}

// Session edits one recipe at a time.
type Session struct {
	backend      Backend
	calc         *cost.Calculator
	clock        clock.Clock
	window       time.Duration
	log          *zap.Logger
	autosaveOpts []autosave.Option
	engine       *autosave.Engine

	reloadAfterSave bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	current string
	entries map[string]*entry
	catalog model.Catalog
}

// New creates a Session backed by b. ctx bounds background work.
func New(ctx context.Context, b Backend, opts ...Option) *Session {
	s := &Session{
		backend: b,
		clock:   clock.Real{},
		window:  guard.DefaultWindow,
		log:     zap.L(),
		entries: make(map[string]*entry),
		catalog: model.Catalog{},

		reloadAfterSave: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.calc == nil {
		s.calc = cost.NewCalculator(nil)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	engineOpts := []autosave.Option{
		autosave.WithClock(s.clock),
		autosave.WithExistenceChecker(b),
		autosave.WithLogger(s.log),
		autosave.WithOnSaved(s.onSaved),
	}
	s.engine = autosave.New(s.ctx, b, append(engineOpts, s.autosaveOpts...)...)
	return s
}

// Open loads a recipe and makes it the current one. The previous recipe's
// state is dropped; opening the current recipe again is a guarded Reload. Opening model.UnsavedRecipeID starts an empty scratch
// recipe that is never autosaved.
func (s *Session) Open(ctx context.Context, id string) error {
	s.mu.Lock()
	_, reopen := s.entries[id]
	reopen = reopen && id == s.current && !s.closed
	s.mu.Unlock()
	if reopen {
		// Re-selecting the open recipe keeps unsaved edits.
		_, err := s.Reload(ctx)
		return err
	}

	ings, err := s.backend.ListIngredients(ctx)
	if err != nil {
		return eris.Wrap(err, "editor: load ingredients")
	}
	catalog := model.NewCatalog(ings)

	recipe := model.Recipe{ID: id, Name: "Untitled", Portions: 1}
	var lines []model.LineItem
	if id != model.UnsavedRecipeID {
		r, err := s.backend.GetRecipe(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "editor: load recipe %s", id)
		}
		recipe = *r
		lines, err = s.backend.GetRecipeLines(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "editor: load lines for %s", id)
		}
	}

	rc := s.calc.ComputeRecipe(id, lines, catalog, recipe.Portions)
	if len(rc.Dropped) > 0 {
		s.log.Debug("editor: dropped lines with missing ingredients",
			zap.String("recipe_id", id),
			zap.Strings("ingredient_ids", rc.Dropped),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, s.current)
	s.entries[id] = &entry{
		recipe:  recipe,
		calcs:   rc.Lines,
		dropped: rc.Dropped,
		guard:   guard.New(guard.WithClock(s.clock), guard.WithWindow(s.window)),
	}
	s.current = id
	s.catalog = catalog

	s.engine.SetTarget(id)
	if err := s.engine.Baseline(cost.LineItems(rc.Lines)); err != nil {
		return err
	}
	s.log.Debug("editor: opened recipe",
		zap.String("recipe_id", id),
		zap.Int("lines", len(rc.Lines)),
	)
	return nil
}

// Current returns the id of the open recipe.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Recipe returns the open recipe.
func (s *Session) Recipe() (model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return model.Recipe{}, err
	}
	return e.recipe, nil
}

// Lines returns the costed lines of the open recipe.
func (s *Session) Lines() []model.CostCalculation {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return nil
	}
	return slices.Clone(e.calcs)
}

// Catalog returns the ingredient catalog loaded with the recipe.
func (s *Session) Catalog() model.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// AddLine validates and appends a line. An empty unit defaults to the
// ingredient's canonical unit.
func (s *Session) AddLine(li model.LineItem) (model.CostCalculation, error) {
	if err := cost.ValidateLine(li); err != nil {
		return model.CostCalculation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return model.CostCalculation{}, err
	}
	ing, ok := s.catalog[li.IngredientID]
	if !ok {
		return model.CostCalculation{}, eris.Wrapf(ErrUnknownIngredient, "ingredient %q", li.IngredientID)
	}
	unit := li.Unit
	if unit == "" {
		unit = ing.Unit
	}

	calc := s.calc.ComputeCost(s.current, ing, li.Quantity, unit)
	e.calcs = cost.AddLine(e.calcs, calc)
	return calc, s.changedLocked(e)
}

// UpdateQuantity reprices the line at index for a new quantity.
func (s *Session) UpdateQuantity(index int, quantity float64) (model.CostCalculation, error) {
	if quantity <= 0 {
		return model.CostCalculation{}, cost.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return model.CostCalculation{}, err
	}
	calcs, ok := cost.UpdateLine(e.calcs, index, quantity)
	if !ok {
		return model.CostCalculation{}, ErrLineNotFound
	}
	e.calcs = calcs
	return calcs[index], s.changedLocked(e)
}

// RemoveLine deletes the line at index and saves immediately. A disabled
// autosave is not an error; the removal stays local.
func (s *Session) RemoveLine(ctx context.Context, index int) error {
	s.mu.Lock()
	e, err := s.entryLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	calcs, ok := cost.RemoveLine(e.calcs, index)
	if !ok {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	e.calcs = calcs
	if err := s.changedLocked(e); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.SaveNow(ctx)
}

// SetPortions changes the portion count and writes it through when the
// backend supports it.
func (s *Session) SetPortions(ctx context.Context, portions float64) error {
	if portions <= 0 {
		return ErrInvalidPortions
	}

	s.mu.Lock()
	e, err := s.entryLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	e.recipe.Portions = portions
	e.guard.MarkDirty(model.CollectionPortions)
	id := s.current
	s.mu.Unlock()

	ps, ok := s.backend.(PortionsSaver)
	if !ok || !s.engine.Enabled() {
		return nil
	}
	if err := ps.UpdatePortions(ctx, id, portions); err != nil {
		return eris.Wrapf(err, "editor: save portions for %s", id)
	}
	return nil
}

// SaveNow persists pending line edits immediately.
func (s *Session) SaveNow(ctx context.Context) error {
	err := s.engine.SaveNow(ctx)
	if errors.Is(err, autosave.ErrDisabled) {
		return nil
	}
	return err
}

// ReloadResult reports which collections a reload replaced.
type ReloadResult struct {
	Lines    bool
	Portions bool
}

// Reload re-reads the open recipe from the backend. Collections with a
// manual edit younger than the guard window keep their local state.
func (s *Session) Reload(ctx context.Context) (ReloadResult, error) {
	var res ReloadResult

	s.mu.Lock()
	id := s.current
	e, err := s.entryLocked()
	s.mu.Unlock()
	if err != nil {
		return res, err
	}
	if id == model.UnsavedRecipeID {
		return res, nil
	}

	wantLines := e.guard.AllowReload(model.CollectionIngredients)
	wantPortions := e.guard.AllowReload(model.CollectionPortions)
	if !wantLines && !wantPortions {
		s.log.Debug("editor: reload skipped, local edits pending", zap.String("recipe_id", id))
		return res, nil
	}

	recipe, err := s.backend.GetRecipe(ctx, id)
	if err != nil {
		return res, eris.Wrapf(err, "editor: reload recipe %s", id)
	}
	var (
		catalog model.Catalog
		lines   []model.LineItem
	)
	if wantLines {
		ings, err := s.backend.ListIngredients(ctx)
		if err != nil {
			return res, eris.Wrap(err, "editor: reload ingredients")
		}
		catalog = model.NewCatalog(ings)
		lines, err = s.backend.GetRecipeLines(ctx, id)
		if err != nil {
			return res, eris.Wrapf(err, "editor: reload lines for %s", id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != id || s.entries[id] != e {
		return res, nil
	}
	// The guard is asked again: an edit may have landed while loading.
	if wantPortions && e.guard.AllowReload(model.CollectionPortions) {
		e.recipe.Portions = recipe.Portions
		res.Portions = true
	}
	e.recipe.Name = recipe.Name
	e.recipe.TargetGrossProfit = recipe.TargetGrossProfit
	e.recipe.Strategy = recipe.Strategy
	e.recipe.UpdatedAt = recipe.UpdatedAt

	if wantLines && e.guard.AllowReload(model.CollectionIngredients) {
		rc := s.calc.ComputeRecipe(id, lines, catalog, e.recipe.Portions)
		e.calcs = rc.Lines
		e.dropped = rc.Dropped
		s.catalog = catalog
		if err := s.engine.Baseline(cost.LineItems(rc.Lines)); err != nil {
			return res, err
		}
		res.Lines = true
	}
	s.log.Debug("editor: reloaded recipe",
		zap.String("recipe_id", id),
		zap.Bool("lines", res.Lines),
		zap.Bool("portions", res.Portions),
	)
	return res, nil
}

// Cost returns the costed view of the open recipe.
func (s *Session) Cost() (model.RecipeCost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return model.RecipeCost{}, err
	}
	rc := cost.Summarize(s.current, e.calcs, e.recipe.Portions)
	rc.Dropped = slices.Clone(e.dropped)
	return rc, nil
}

// Price suggests a sell price for one portion of the open recipe. It
// returns false when no suggestion is possible.
func (s *Session) Price(targetGP float64, strategy model.Strategy) (model.PricingResult, bool) {
	rc, err := s.Cost()
	if err != nil {
		return model.PricingResult{}, false
	}
	return pricing.Suggest(rc.CostPerPortion, targetGP, strategy)
}

// Dirty returns the guard flag of a collection of the open recipe.
func (s *Session) Dirty(c model.Collection) model.DirtyFlag {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entryLocked()
	if err != nil {
		return model.DirtyFlag{}
	}
	return e.guard.Flag(c)
}

// AutosaveState returns the autosave status of the open recipe.
func (s *Session) AutosaveState() model.AutosaveState {
	return s.engine.State()
}

// Close stops autosave and background reloads. Pending edits that were not
// saved are lost.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.engine.Close()
	s.wg.Wait()
}

func (s *Session) entryLocked() (*entry, error) {
	e, ok := s.entries[s.current]
	if !ok || s.current == "" {
		return nil, ErrNoRecipe
	}
	return e, nil
}

// changedLocked runs the post-mutation steps: mark dirty, then schedule
// persistence.
func (s *Session) changedLocked(e *entry) error {
	e.guard.MarkDirty(model.CollectionIngredients)
	return s.engine.Track(cost.LineItems(e.calcs))
}

// onSaved asks for a background reload after a persistence round trip. The
// guard normally rejects it because the edit that triggered the save is
// still inside the window.
func (s *Session) onSaved(id string) {
	if !s.reloadAfterSave {
		return
	}
	s.mu.Lock()
	if s.closed || s.current != id {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.Reload(s.ctx); err != nil && s.ctx.Err() == nil {
			s.log.Warn("editor: background reload failed",
				zap.String("recipe_id", id),
				zap.Error(err),
			)
		}
	}()
}
