package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/costing-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "costing.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	_, err = st.CreateRecipe(ctx, model.Recipe{ID: "r1", Name: "Soup", Portions: 4})
	require.NoError(t, err)
	require.NoError(t, st.SaveLines(ctx, "r1", []model.LineItem{{IngredientID: "leek", Quantity: 2, Unit: "each"}}))
	require.NoError(t, st.Close())

	st, err = NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	r, err := st.GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, r.Portions, 1e-9)
	assert.False(t, r.CreatedAt.IsZero())

	lines, err := st.GetRecipeLines(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{{IngredientID: "leek", Quantity: 2, Unit: "each"}}, lines)
}

func TestSQLite_UpsertEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.UpsertIngredients(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_LinesMayReferenceUnknownIngredients(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := st.CreateRecipe(ctx, model.Recipe{ID: "r1", Name: "Soup"})
	require.NoError(t, err)

	require.NoError(t, st.SaveLines(ctx, "r1", []model.LineItem{{IngredientID: "deleted-ingredient", Quantity: 1, Unit: "kg"}}))
	lines, err := st.GetRecipeLines(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestSQLite_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
