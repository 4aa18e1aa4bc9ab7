package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/costing-cli/internal/db"
	"github.com/sells-group/costing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the operations the editor runs on every load and save.
var preparedStatements = map[string]string{
	"get_recipe":       `SELECT id, name, portions, target_gross_profit, strategy, created_at, updated_at FROM recipes WHERE id = $1`,
	"get_recipe_lines": `SELECT ingredient_id, quantity, unit FROM recipe_lines WHERE recipe_id = $1 ORDER BY position`,
	"recipe_exists":    `SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)`,
	"touch_recipe":     `UPDATE recipes SET updated_at = $1 WHERE id = $2`,
}

var (
	ingredientColumns = []string{
		"id", "name", "unit", "cost_per_unit", "cost_per_unit_incl_trim",
		"waste_percent", "yield_percent", "category", "updated_at",
	}
	lineColumns = []string{"recipe_id", "position", "ingredient_id", "quantity", "unit"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingredients (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                    TEXT NOT NULL,
	unit                    TEXT NOT NULL,
	cost_per_unit           DOUBLE PRECISION,
	cost_per_unit_incl_trim DOUBLE PRECISION,
	waste_percent           DOUBLE PRECISION,
	yield_percent           DOUBLE PRECISION,
	category                TEXT NOT NULL DEFAULT 'normal',
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipes (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                TEXT NOT NULL,
	portions            DOUBLE PRECISION NOT NULL DEFAULT 1,
	target_gross_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
	strategy            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipe_lines (
	recipe_id     TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	ingredient_id TEXT NOT NULL,
	quantity      DOUBLE PRECISION NOT NULL,
	unit          TEXT NOT NULL,
	PRIMARY KEY (recipe_id, position)
);

CREATE INDEX IF NOT EXISTS idx_ingredients_name ON ingredients(name);
CREATE INDEX IF NOT EXISTS idx_recipes_name ON recipes(name);
CREATE INDEX IF NOT EXISTS idx_recipe_lines_ingredient ON recipe_lines(ingredient_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertIngredients loads the catalog through a temp table and COPY.
func (s *PostgresStore) UpsertIngredients(ctx context.Context, ings []model.Ingredient) (int, error) {
	if len(ings) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	prepared := prepareIngredients(ings)
	rows := make([][]any, len(prepared))
	for i, ing := range prepared {
		rows[i] = []any{
			ing.ID, ing.Name, ing.Unit, ing.CostPerUnit, ing.CostPerUnitInclTrim,
			ing.WastePercent, ing.YieldPercent, string(ing.Category), now,
		}
	}

	n, err := db.Merge(ctx, s.pool, db.MergeConfig{
		Table:   "ingredients",
		Key:     "id",
		Columns: ingredientColumns,
		Touch:   []string{"updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert ingredients")
	}
	return int(n), nil
}

func (s *PostgresStore) ListIngredients(ctx context.Context) ([]model.Ingredient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, unit, cost_per_unit, cost_per_unit_incl_trim, waste_percent, yield_percent, category, updated_at
		FROM ingredients ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingredients")
	}
	defer rows.Close()

	var ings []model.Ingredient
	for rows.Next() {
		ing, err := scanPgIngredient(rows)
		if err != nil {
			return nil, err
		}
		ings = append(ings, *ing)
	}
	return ings, eris.Wrap(rows.Err(), "postgres: iterate ingredients")
}

func (s *PostgresStore) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, unit, cost_per_unit, cost_per_unit_incl_trim, waste_percent, yield_percent, category, updated_at
		FROM ingredients WHERE id = $1`, id)
	ing, err := scanPgIngredient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "ingredient %s", id)
	}
	return ing, err
}

func (s *PostgresStore) CreateRecipe(ctx context.Context, r model.Recipe) (*model.Recipe, error) {
	r = prepareRecipe(r)
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recipes (id, name, portions, target_gross_profit, strategy, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Name, r.Portions, r.TargetGrossProfit, string(r.Strategy), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert recipe")
	}
	return &r, nil
}

func (s *PostgresStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, portions, target_gross_profit, strategy, created_at, updated_at FROM recipes WHERE id = $1`,
		id,
	)
	r, err := scanPgRecipe(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "recipe %s", id)
	}
	return r, err
}

func (s *PostgresStore) ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, name, portions, target_gross_profit, strategy, created_at, updated_at FROM recipes`)
	var args []any

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		b.WriteString(` WHERE name ILIKE $1`)
	}
	b.WriteString(` ORDER BY name, id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		if filter.Name != "" {
			b.WriteString(` LIMIT $2 OFFSET $3`)
		} else {
			b.WriteString(` LIMIT $1 OFFSET $2`)
		}
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recipes")
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanPgRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, eris.Wrap(rows.Err(), "postgres: iterate recipes")
}

func (s *PostgresStore) RecipeExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: recipe exists %s", id)
	}
	return ok, nil
}

func (s *PostgresStore) UpdatePortions(ctx context.Context, id string, portions float64) error {
	if err := validatePortions(portions); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE recipes SET portions = $1, updated_at = $2 WHERE id = $3`,
		portions, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update portions %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "recipe %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteRecipe(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete recipe %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "recipe %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRecipeLines(ctx context.Context, id string) ([]model.LineItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ingredient_id, quantity, unit FROM recipe_lines WHERE recipe_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lines %s", id)
	}
	defer rows.Close()

	items := []model.LineItem{}
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.IngredientID, &li.Quantity, &li.Unit); err != nil {
			return nil, eris.Wrap(err, "postgres: scan line")
		}
		items = append(items, li)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate lines")
}

// SaveLines replaces the stored lines of a recipe: delete and COPY in one
// transaction.
func (s *PostgresStore) SaveLines(ctx context.Context, id string, items []model.LineItem) error {
	tag, err := s.pool.Exec(ctx, `UPDATE recipes SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch recipe %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "recipe %s", id)
	}

	rows := make([][]any, len(items))
	for i, li := range items {
		rows[i] = []any{id, int32(i), li.IngredientID, li.Quantity, li.Unit}
	}
	if _, err := db.Replace(ctx, s.pool, db.ReplaceConfig{
		Table:     "recipe_lines",
		KeyColumn: "recipe_id",
		Columns:   lineColumns,
	}, id, rows); err != nil {
		return eris.Wrapf(err, "postgres: save lines %s", id)
	}
	return nil
}

func scanPgIngredient(row pgx.Row) (*model.Ingredient, error) {
	var (
		ing      model.Ingredient
		category string
	)
	err := row.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.CostPerUnit, &ing.CostPerUnitInclTrim,
		&ing.WastePercent, &ing.YieldPercent, &category, &ing.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan ingredient")
	}
	ing.Category = model.Category(category)
	return &ing, nil
}

func scanPgRecipe(row pgx.Row) (*model.Recipe, error) {
	var (
		r        model.Recipe
		strategy string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Portions, &r.TargetGrossProfit, &strategy, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan recipe")
	}
	r.Strategy = model.Strategy(strategy)
	return &r, nil
}
