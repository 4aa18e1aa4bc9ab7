package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/costing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Pragmas are per connection; keep a single one so they always apply.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ingredients (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	unit                    TEXT NOT NULL,
	cost_per_unit           REAL,
	cost_per_unit_incl_trim REAL,
	waste_percent           REAL,
	yield_percent           REAL,
	category                TEXT NOT NULL DEFAULT 'normal',
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS recipes (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	portions            REAL NOT NULL DEFAULT 1,
	target_gross_profit REAL NOT NULL DEFAULT 0,
	strategy            TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS recipe_lines (
	recipe_id     TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	ingredient_id TEXT NOT NULL,
	quantity      REAL NOT NULL,
	unit          TEXT NOT NULL,
	PRIMARY KEY (recipe_id, position)
);

CREATE INDEX IF NOT EXISTS idx_ingredients_name ON ingredients(name);
CREATE INDEX IF NOT EXISTS idx_recipes_name ON recipes(name);
CREATE INDEX IF NOT EXISTS idx_recipe_lines_ingredient ON recipe_lines(ingredient_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertIngredients(ctx context.Context, ings []model.Ingredient) (int, error) {
	if len(ings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert ingredients")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingredients (id, name, unit, cost_per_unit, cost_per_unit_incl_trim, waste_percent, yield_percent, category, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			cost_per_unit = excluded.cost_per_unit,
			cost_per_unit_incl_trim = excluded.cost_per_unit_incl_trim,
			waste_percent = excluded.waste_percent,
			yield_percent = excluded.yield_percent,
			category = excluded.category,
			updated_at = excluded.updated_at
		WHERE ingredients.name IS NOT excluded.name
			OR ingredients.unit IS NOT excluded.unit
			OR ingredients.cost_per_unit IS NOT excluded.cost_per_unit
			OR ingredients.cost_per_unit_incl_trim IS NOT excluded.cost_per_unit_incl_trim
			OR ingredients.waste_percent IS NOT excluded.waste_percent
			OR ingredients.yield_percent IS NOT excluded.yield_percent
			OR ingredients.category IS NOT excluded.category`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert ingredients")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var changed int64
	for _, ing := range prepareIngredients(ings) {
		res, err := stmt.ExecContext(ctx,
			ing.ID, ing.Name, ing.Unit,
			nullFloat(ing.CostPerUnit), nullFloat(ing.CostPerUnitInclTrim),
			nullFloat(ing.WastePercent), nullFloat(ing.YieldPercent),
			string(ing.Category), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert ingredient %s", ing.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert ingredients rows affected")
		}
		changed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert ingredients")
	}
	return int(changed), nil
}

func (s *SQLiteStore) ListIngredients(ctx context.Context) ([]model.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, cost_per_unit, cost_per_unit_incl_trim, waste_percent, yield_percent, category, updated_at
		FROM ingredients ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingredients")
	}
	defer rows.Close() //nolint:errcheck

	var ings []model.Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ings = append(ings, *ing)
	}
	return ings, eris.Wrap(rows.Err(), "sqlite: iterate ingredients")
}

func (s *SQLiteStore) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, cost_per_unit, cost_per_unit_incl_trim, waste_percent, yield_percent, category, updated_at
		FROM ingredients WHERE id = ?`, id)
	ing, err := scanIngredient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "ingredient %s", id)
	}
	return ing, err
}

func (s *SQLiteStore) CreateRecipe(ctx context.Context, r model.Recipe) (*model.Recipe, error) {
	r = prepareRecipe(r)
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipes (id, name, portions, target_gross_profit, strategy, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Portions, r.TargetGrossProfit, string(r.Strategy), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert recipe")
	}
	return &r, nil
}

func (s *SQLiteStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, portions, target_gross_profit, strategy, created_at, updated_at FROM recipes WHERE id = ?`,
		id,
	)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "recipe %s", id)
	}
	return r, err
}

func (s *SQLiteStore) ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, error) {
	query := `SELECT id, name, portions, target_gross_profit, strategy, created_at, updated_at FROM recipes WHERE 1=1`
	var args []any

	if filter.Name != "" {
		query += ` AND lower(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
	}
	query += ` ORDER BY name, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recipes")
	}
	defer rows.Close() //nolint:errcheck

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, eris.Wrap(rows.Err(), "sqlite: iterate recipes")
}

func (s *SQLiteStore) RecipeExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recipes WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: recipe exists %s", id)
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpdatePortions(ctx context.Context, id string, portions float64) error {
	if err := validatePortions(portions); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE recipes SET portions = ?, updated_at = ? WHERE id = ?`,
		portions, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update portions %s", id)
	}
	return checkRowsAffected(res, "recipe", id)
}

func (s *SQLiteStore) DeleteRecipe(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete recipe %s", id)
	}
	return checkRowsAffected(res, "recipe", id)
}

func (s *SQLiteStore) GetRecipeLines(ctx context.Context, id string) ([]model.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ingredient_id, quantity, unit FROM recipe_lines WHERE recipe_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lines %s", id)
	}
	defer rows.Close() //nolint:errcheck

	items := []model.LineItem{}
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.IngredientID, &li.Quantity, &li.Unit); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan line")
		}
		items = append(items, li)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate lines")
}

// SaveLines replaces the stored lines of a recipe in one transaction.
func (s *SQLiteStore) SaveLines(ctx context.Context, id string, items []model.LineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save lines")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE recipes SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch recipe %s", id)
	}
	if err := checkRowsAffected(res, "recipe", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_lines WHERE recipe_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete lines %s", id)
	}
	for i, li := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_lines (recipe_id, position, ingredient_id, quantity, unit) VALUES (?, ?, ?, ?, ?)`,
			id, i, li.IngredientID, li.Quantity, li.Unit,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert line %d of %s", i, id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save lines")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanIngredient(row scannable) (*model.Ingredient, error) {
	var (
		ing                          model.Ingredient
		category                     string
		cpu, cpuTrim, waste, yieldPc sql.NullFloat64
	)
	err := row.Scan(&ing.ID, &ing.Name, &ing.Unit, &cpu, &cpuTrim, &waste, &yieldPc, &category, &ing.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ingredient")
	}
	ing.CostPerUnit = floatPtr(cpu)
	ing.CostPerUnitInclTrim = floatPtr(cpuTrim)
	ing.WastePercent = floatPtr(waste)
	ing.YieldPercent = floatPtr(yieldPc)
	ing.Category = model.Category(category)
	return &ing, nil
}

func scanRecipe(row scannable) (*model.Recipe, error) {
	var (
		r        model.Recipe
		strategy string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Portions, &r.TargetGrossProfit, &strategy, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan recipe")
	}
	r.Strategy = model.Strategy(strategy)
	return &r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
