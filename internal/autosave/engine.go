// Package autosave debounces persistence of an edited recipe's line items
// and exposes the idle/saving/saved/error status of the last attempt.
package autosave

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/clock"
	"github.com/sells-group/costing-cli/internal/model"
)

const (
	DefaultDebounce     = 2500 * time.Millisecond
	DefaultSavedDisplay = 2000 * time.Millisecond
	DefaultSaveTimeout  = 30 * time.Second
)

// ErrDisabled is returned by SaveNow when there is no confirmed target.
var ErrDisabled = eris.New("autosave: disabled for current target")

// Saver replaces the stored line items of a recipe.
type Saver interface {
	SaveLines(ctx context.Context, recipeID string, items []model.LineItem) error
}

// ExistenceChecker reports whether a recipe exists in the backing store.
type ExistenceChecker interface {
	RecipeExists(ctx context.Context, recipeID string) (bool, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for debounce and revert timers.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDebounce sets the quiet period before a scheduled save runs.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithSavedDisplay sets how long the saved status is held before idle.
func WithSavedDisplay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.savedDisplay = d
		}
	}
}

// WithSaveTimeout bounds a single persistence call.
func WithSaveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.saveTimeout = d
		}
	}
}

// WithExistenceChecker gates saving on the target recipe existing.
func WithExistenceChecker(c ExistenceChecker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithEnabled switches autosave on or off. Default on.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) { e.enabled = enabled }
}

// WithLogger sets the logger. Default zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithOnSaved registers a hook called after each successful save of the
// current target.
func WithOnSaved(fn func(recipeID string)) Option {
	return func(e *Engine) { e.onSaved = fn }
}

// WithOnStateChange registers a hook called on every status transition.
func WithOnStateChange(fn func(model.AutosaveState)) Option {
	return func(e *Engine) { e.onState = fn }
}

// Engine persists one editable recipe at a time. At most one save is in
// flight; edits made while saving are picked up by the next cycle.
type Engine struct {
	saver        Saver
	checker      ExistenceChecker
	clock        clock.Clock
	log          *zap.Logger
	debounce     time.Duration
	savedDisplay time.Duration
	saveTimeout  time.Duration
	onSaved      func(string)
	onState      func(model.AutosaveState)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	enabled    bool
	closed     bool
	targetID   string
	generation uint64
	exists     map[string]bool
	checking   map[string]bool
	state      model.AutosaveState
	scheduled  string
	pending    []model.LineItem
	hasPending bool
	saving     bool
	rerun      bool
	rerunNow   bool
	timer      clock.Timer
	revert     clock.Timer
}

// New creates an Engine with no target. ctx bounds every save and existence
// check the engine starts.
func New(ctx context.Context, saver Saver, opts ...Option) *Engine {
	e := &Engine{
		saver:        saver,
		clock:        clock.Real{},
		log:          zap.L(),
		debounce:     DefaultDebounce,
		savedDisplay: DefaultSavedDisplay,
		saveTimeout:  DefaultSaveTimeout,
		enabled:      true,
		exists:       make(map[string]bool),
		checking:     make(map[string]bool),
		state:        model.AutosaveState{Status: model.AutosaveIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	return e
}

// SetTarget switches the engine to another recipe. Pending timers of the
// previous recipe are cancelled; a save already in flight completes but its
// outcome is discarded.
func (e *Engine) SetTarget(recipeID string) {
	e.mu.Lock()
	if e.closed || recipeID == e.targetID {
		e.mu.Unlock()
		return
	}
	e.stopTimersLocked()
	e.generation++
	e.targetID = recipeID
	e.scheduled = ""
	e.pending = nil
	e.hasPending = false
	e.rerun = false
	e.rerunNow = false
	e.state = model.AutosaveState{Status: model.AutosaveIdle}

	check := e.checker != nil && recipeID != "" && recipeID != model.UnsavedRecipeID
	if _, cached := e.exists[recipeID]; cached || e.checking[recipeID] {
		check = false
	}
	if check {
		e.checking[recipeID] = true
		e.wg.Add(1)
	}
	state := e.state
	e.mu.Unlock()

	e.notify(state)
	if check {
		go e.checkExistence(recipeID)
	}
}

func (e *Engine) checkExistence(recipeID string) {
	defer e.wg.Done()

	ok, err := e.checker.RecipeExists(e.ctx, recipeID)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.checking, recipeID)
	if err != nil {
		// Stay optimistic; the next SetTarget retries.
		e.log.Warn("autosave: existence check failed",
			zap.String("recipe_id", recipeID),
			zap.Error(err),
		)
		return
	}
	e.exists[recipeID] = ok
	if !ok {
		e.log.Info("autosave: recipe not found, autosave disabled", zap.String("recipe_id", recipeID))
	}
}

// Enabled reports whether a save would run now. It is true while the
// existence check for the target is still in flight.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabledLocked()
}

func (e *Engine) enabledLocked() bool {
	if !e.enabled || e.closed || e.targetID == "" || e.targetID == model.UnsavedRecipeID {
		return false
	}
	if ok, cached := e.exists[e.targetID]; cached && !ok {
		return false
	}
	return true
}

// SetEnabled switches autosave on or off for every target.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// TargetID returns the recipe currently tracked.
func (e *Engine) TargetID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targetID
}

// State returns a copy of the current autosave state.
func (e *Engine) State() model.AutosaveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Baseline records items as already persisted, e.g. right after loading
// them, without scheduling a save. Any pending save is dropped.
func (e *Engine) Baseline(items []model.LineItem) error {
	snap, err := EncodeSnapshot(items)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopDebounceLocked()
	e.scheduled = snap
	e.state.LastSnapshot = snap
	e.pending = nil
	e.hasPending = false
	return nil
}

// Track schedules items for persistence after the debounce period. Items
// identical to the last scheduled snapshot are ignored.
func (e *Engine) Track(items []model.LineItem) error {
	snap, err := EncodeSnapshot(items)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || snap == e.scheduled {
		return nil
	}
	e.scheduled = snap
	e.pending = slices.Clone(items)
	e.hasPending = true
	e.restartTimerLocked()
	return nil
}

// SaveNow cancels the debounce timer and persists pending items
// immediately. When a save is already in flight the pending items are saved
// as soon as it settles and SaveNow returns nil.
func (e *Engine) SaveNow(ctx context.Context) error {
	e.mu.Lock()
	e.stopDebounceLocked()
	if !e.hasPending {
		e.mu.Unlock()
		return nil
	}
	if !e.enabledLocked() {
		e.mu.Unlock()
		return ErrDisabled
	}
	if e.saving {
		e.rerunNow = true
		e.mu.Unlock()
		return nil
	}
	next := e.startSaveLocked()
	e.mu.Unlock()

	e.notify(next.state)
	return e.persist(ctx, next)
}

// Close cancels timers and in-flight work. Results arriving after Close are
// discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopTimersLocked()
	e.closed = true
	e.generation++
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) restartTimerLocked() {
	e.stopDebounceLocked()
	gen := e.generation
	e.timer = e.clock.AfterFunc(e.debounce, func() { e.fire(gen) })
}

func (e *Engine) stopDebounceLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) stopTimersLocked() {
	e.stopDebounceLocked()
	if e.revert != nil {
		e.revert.Stop()
		e.revert = nil
	}
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || !e.hasPending {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	if e.saving {
		e.rerun = true
		e.mu.Unlock()
		return
	}
	if !e.enabledLocked() {
		e.log.Debug("autosave: skipped, not enabled", zap.String("recipe_id", e.targetID))
		e.mu.Unlock()
		return
	}
	next := e.startSaveLocked()
	e.mu.Unlock()

	e.notify(next.state)
	_ = e.persist(e.ctx, next)
}

type saveRun struct {
	gen   uint64
	id    string
	snap  string
	items []model.LineItem
	state model.AutosaveState
}

func (e *Engine) startSaveLocked() *saveRun {
	e.saving = true
	e.hasPending = false
	items := e.pending
	e.pending = nil
	if e.revert != nil {
		e.revert.Stop()
		e.revert = nil
	}
	e.state.Status = model.AutosaveSaving
	return &saveRun{gen: e.generation, id: e.targetID, snap: e.scheduled, items: items, state: e.state}
}

func (e *Engine) persist(ctx context.Context, run *saveRun) error {
	saveCtx, cancel := context.WithTimeout(ctx, e.saveTimeout)
	err := e.saver.SaveLines(saveCtx, run.id, run.items)
	cancel()

	e.mu.Lock()
	e.saving = false

	if run.gen != e.generation {
		e.log.Debug("autosave: discarding result for previous target",
			zap.String("recipe_id", run.id),
			zap.Error(err),
		)
		next := e.settleLocked()
		e.mu.Unlock()
		return e.runNext(ctx, next, err)
	}

	if err != nil {
		e.state.Status = model.AutosaveError
		e.state.LastError = err.Error()
		// Put the failed lines back so a forced save or an identical
		// edit can retry them.
		if !e.hasPending {
			e.pending = run.items
			e.hasPending = true
			e.scheduled = ""
		}
		e.log.Warn("autosave: save failed",
			zap.String("recipe_id", run.id),
			zap.Int("lines", len(run.items)),
			zap.Error(err),
		)
	} else {
		e.state.Status = model.AutosaveSaved
		e.state.LastError = ""
		e.state.LastSnapshot = run.snap
		gen := run.gen
		e.revert = e.clock.AfterFunc(e.savedDisplay, func() { e.revertIdle(gen) })
		e.log.Debug("autosave: saved",
			zap.String("recipe_id", run.id),
			zap.Int("lines", len(run.items)),
		)
	}
	state := e.state
	next := e.settleLocked()
	e.mu.Unlock()

	e.notify(state)
	if err == nil && e.onSaved != nil {
		e.onSaved(run.id)
	}
	return e.runNext(ctx, next, err)
}

// settleLocked decides what follows a finished save: an immediate save for
// a deferred SaveNow, a fresh debounce cycle for a timer that fired while
// saving, or nothing.
func (e *Engine) settleLocked() *saveRun {
	now, rerun := e.rerunNow, e.rerun
	e.rerunNow, e.rerun = false, false
	if !e.hasPending || e.closed {
		return nil
	}
	if now && e.enabledLocked() {
		return e.startSaveLocked()
	}
	if now || rerun {
		e.restartTimerLocked()
	}
	return nil
}

// runNext runs a follow-up save, if any, and returns the latest outcome.
func (e *Engine) runNext(ctx context.Context, next *saveRun, err error) error {
	if next == nil {
		return err
	}
	e.notify(next.state)
	return e.persist(ctx, next)
}

func (e *Engine) revertIdle(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.state.Status != model.AutosaveSaved {
		e.mu.Unlock()
		return
	}
	e.revert = nil
	e.state.Status = model.AutosaveIdle
	state := e.state
	e.mu.Unlock()
	e.notify(state)
}

func (e *Engine) notify(state model.AutosaveState) {
	if e.onState != nil {
		e.onState(state)
	}
}
