package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeConfig describes a keyed bulk merge.
type MergeConfig struct {
	Table   string   // target table (e.g., "ingredients")
	Key     string   // primary key column
	Columns []string // columns written by COPY, key included
	Touch   []string // refreshed on change, ignored when comparing
}

// Merge stages rows in a temp table with COPY and merges them into the
// target. Existing rows are only rewritten when a compared column differs,
// so re-importing an unchanged catalog keeps its timestamps. It returns the
// number of rows inserted or changed.
func Merge(ctx context.Context, pool Pool, cfg MergeConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if cfg.Key == "" {
		return 0, eris.New("db: merge: no key column specified")
	}
	if !slices.Contains(cfg.Columns, cfg.Key) {
		return 0, eris.Errorf("db: merge: key %s missing from columns", cfg.Key)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staging := stagingTable(cfg.Table)
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(), sanitizeTable(cfg.Table),
	)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: COPY into staging for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: INSERT ON CONFLICT for %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit tx")
	}
	return tag.RowsAffected(), nil
}

// mergeSQL builds the INSERT ... ON CONFLICT statement. The WHERE clause
// compares every non-key, non-touch column of the target row.
func mergeSQL(cfg MergeConfig, staging string) string {
	table := sanitizeTable(cfg.Table)
	touch := make(map[string]bool, len(cfg.Touch))
	for _, c := range cfg.Touch {
		touch[c] = true
	}

	var set, target, incoming []string
	for _, c := range cfg.Columns {
		if c == cfg.Key {
			continue
		}
		col := pgx.Identifier{c}.Sanitize()
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		if !touch[c] {
			target = append(target, fmt.Sprintf("%s.%s", table, col))
			incoming = append(incoming, "EXCLUDED."+col)
		}
	}

	cols := quoteAndJoin(cfg.Columns)
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		table, cols, cols, pgx.Identifier{staging}.Sanitize(), pgx.Identifier{cfg.Key}.Sanitize())
	if len(set) == 0 {
		return q + "DO NOTHING"
	}
	q += "DO UPDATE SET " + strings.Join(set, ", ")
	if len(target) > 0 {
		q += fmt.Sprintf(" WHERE (%s) IS DISTINCT FROM (%s)", strings.Join(target, ", "), strings.Join(incoming, ", "))
	}
	return q
}

func stagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

// identifier splits an optionally schema-qualified table name.
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
