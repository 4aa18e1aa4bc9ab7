package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/cost"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
	"github.com/sells-group/costing-cli/internal/store"
	"github.com/sells-group/costing-cli/pkg/kitchen"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the costing HTTP API",
	Long:  "Serves cost and price computation plus the recipe backend routes the kitchen client and the edit command talk to.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, closeFn, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: buildRouter(b, routerConfig{
				APIKey:          cfg.Server.APIKey,
				AllowedOrigins:  cfg.Server.AllowedOrigins,
				DefaultGP:       cfg.Pricing.TargetGrossProfit,
				DefaultStrategy: configuredStrategy(),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("driver", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// routerConfig carries the settings buildRouter needs.
type routerConfig struct {
	APIKey          string
	AllowedOrigins  []string
	DefaultGP       float64
	DefaultStrategy model.Strategy
}

type api struct {
	backend backend
	calc    *cost.Calculator
	cfg     routerConfig
}

type costRequest struct {
	RecipeID          string             `json:"recipe_id,omitempty"`
	Portions          float64            `json:"portions"`
	Lines             []model.LineItem   `json:"lines"`
	Ingredients       []model.Ingredient `json:"ingredients,omitempty"`
	TargetGrossProfit float64            `json:"target_gross_profit,omitempty"`
	Strategy          model.Strategy     `json:"strategy,omitempty"`
}

type priceRequest struct {
	FoodCost          float64        `json:"food_cost"`
	TargetGrossProfit *float64       `json:"target_gross_profit"`
	Strategy          model.Strategy `json:"strategy"`
}

type linesBody struct {
	Lines []model.LineItem `json:"lines"`
}

type portionsBody struct {
	Portions float64 `json:"portions"`
}

// buildRouter wires the API routes.
func buildRouter(b backend, rc routerConfig) http.Handler {
	a := &api{backend: b, calc: cost.NewCalculator(nil), cfg: rc}
	origins := rc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireAPIKey(rc.APIKey))

		r.Post("/cost", a.handleCost)
		r.Post("/price", a.handlePrice)
		r.Get("/ingredients", a.handleListIngredients)

		r.Route("/recipes/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetRecipe)
			r.Get("/cost", a.handleRecipeCost)
			r.Get("/lines", a.handleGetLines)
			r.Put("/lines", a.handleSaveLines)
			r.Put("/portions", a.handleUpdatePortions)
		})
	})
	return r
}

func (a *api) handleCost(w http.ResponseWriter, r *http.Request) {
	var req costRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for i, li := range req.Lines {
		if err := cost.ValidateLine(li); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("line %d: %s", i+1, err))
			return
		}
	}

	ings := req.Ingredients
	if len(ings) == 0 {
		var err error
		if ings, err = a.backend.ListIngredients(r.Context()); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	id := req.RecipeID
	if id == "" {
		id = model.UnsavedRecipeID
	}
	rc := a.calc.ComputeRecipe(id, req.Lines, model.NewCatalog(ings), req.Portions)
	recipe := model.Recipe{ID: id, Portions: rc.Portions, TargetGrossProfit: req.TargetGrossProfit, Strategy: req.Strategy}
	writeJSON(w, http.StatusOK, a.withPrice(recipe, rc))
}

func (a *api) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FoodCost <= 0 {
		writeError(w, http.StatusBadRequest, "food_cost must be greater than zero")
		return
	}
	gp := a.cfg.DefaultGP
	if req.TargetGrossProfit != nil {
		gp = *req.TargetGrossProfit
	}
	if err := pricing.ValidateTarget(gp); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategy := a.cfg.DefaultStrategy
	if req.Strategy != "" {
		s, err := pricing.ParseStrategy(string(req.Strategy))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = s
	}
	writeJSON(w, http.StatusOK, pricing.ComputePrice(req.FoodCost, gp, strategy))
}

func (a *api) handleRecipeCost(w http.ResponseWriter, r *http.Request) {
	recipe, rc, err := costStoredRecipe(r.Context(), a.backend, a.calc, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.withPrice(*recipe, rc))
}

func (a *api) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	ings, err := a.backend.ListIngredients(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if ings == nil {
		ings = []model.Ingredient{}
	}
	writeJSON(w, http.StatusOK, ings)
}

func (a *api) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := a.backend.GetRecipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (a *api) handleGetLines(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if ok, err := a.backend.RecipeExists(r.Context(), id); err != nil || !ok {
		if err == nil {
			err = store.ErrNotFound
		}
		a.fail(w, r, err)
		return
	}
	lines, err := a.backend.GetRecipeLines(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if lines == nil {
		lines = []model.LineItem{}
	}
	writeJSON(w, http.StatusOK, linesBody{Lines: lines})
}

func (a *api) handleSaveLines(w http.ResponseWriter, r *http.Request) {
	var body linesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for i, li := range body.Lines {
		if err := cost.ValidateLine(li); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("line %d: %s", i+1, err))
			return
		}
	}
	if err := a.backend.SaveLines(r.Context(), chi.URLParam(r, "id"), body.Lines); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleUpdatePortions(w http.ResponseWriter, r *http.Request) {
	var body portionsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Portions <= 0 {
		writeError(w, http.StatusBadRequest, "portions must be greater than zero")
		return
	}
	if err := a.backend.UpdatePortions(r.Context(), chi.URLParam(r, "id"), body.Portions); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) withPrice(recipe model.Recipe, rc model.RecipeCost) *costOutput {
	out := &costOutput{Recipe: recipe, Cost: rc}
	gp, strategy := pricingTarget(recipe, a.cfg.DefaultGP, a.cfg.DefaultStrategy)
	if pr, ok := pricing.Suggest(rc.CostPerPortion, gp, strategy); ok {
		out.Price = &pr
	}
	return out
}

// fail maps backend errors to a status code. Not-found from either a local
// store or a remote backend becomes 404.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	if eris.Is(err, store.ErrNotFound) || eris.Is(err, kitchen.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("api request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions && r.Header.Get("Authorization") != "Bearer "+key {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
