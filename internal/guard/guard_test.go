package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/costing-cli/internal/clock"
	"github.com/sells-group/costing-cli/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestGuard_CleanAllowsReload(t *testing.T) {
	t.Parallel()
	g := New(WithClock(clock.NewFake(epoch)))

	assert.True(t, g.AllowReload(model.CollectionIngredients))
	assert.False(t, g.Flag(model.CollectionIngredients).HasManualChange)
}

func TestGuard_WindowBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		allow   bool
	}{
		{"immediately", 0, false},
		{"one ms after", time.Millisecond, false},
		{"just before window", 10*time.Second - time.Millisecond, false},
		{"at window", 10 * time.Second, true},
		{"after window", 30 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := clock.NewFake(epoch)
			g := New(WithClock(c))

			g.MarkDirty(model.CollectionIngredients)
			c.Advance(tt.elapsed)

			assert.Equal(t, tt.allow, g.AllowReload(model.CollectionIngredients))
		})
	}
}

func TestGuard_MarkDirtyRefreshesTimestamp(t *testing.T) {
	t.Parallel()
	c := clock.NewFake(epoch)
	g := New(WithClock(c))

	g.MarkDirty(model.CollectionIngredients)
	c.Advance(8 * time.Second)
	g.MarkDirty(model.CollectionIngredients)
	c.Advance(8 * time.Second)

	assert.False(t, g.AllowReload(model.CollectionIngredients))
	assert.Equal(t, epoch.Add(8*time.Second), g.Flag(model.CollectionIngredients).LastChangeAt)

	c.Advance(2 * time.Second)
	assert.True(t, g.AllowReload(model.CollectionIngredients))
}

func TestGuard_CollectionsAreIndependent(t *testing.T) {
	t.Parallel()
	c := clock.NewFake(epoch)
	g := New(WithClock(c))

	g.MarkDirty(model.CollectionPortions)

	assert.True(t, g.AllowReload(model.CollectionIngredients))
	assert.False(t, g.AllowReload(model.CollectionPortions))
}

func TestGuard_DirtyFlagStaysAfterWindow(t *testing.T) {
	t.Parallel()
	c := clock.NewFake(epoch)
	g := New(WithClock(c))

	g.MarkDirty(model.CollectionIngredients)
	c.Advance(time.Minute)

	assert.True(t, g.AllowReload(model.CollectionIngredients))
	assert.True(t, g.Flag(model.CollectionIngredients).HasManualChange)
}

func TestGuard_Reset(t *testing.T) {
	t.Parallel()
	c := clock.NewFake(epoch)
	g := New(WithClock(c))

	g.MarkDirty(model.CollectionIngredients)
	g.MarkDirty(model.CollectionPortions)
	g.Reset()

	assert.True(t, g.AllowReload(model.CollectionIngredients))
	assert.True(t, g.AllowReload(model.CollectionPortions))
	assert.False(t, g.Flag(model.CollectionIngredients).HasManualChange)
}

func TestGuard_CustomWindow(t *testing.T) {
	t.Parallel()
	c := clock.NewFake(epoch)
	g := New(WithClock(c), WithWindow(3*time.Second))

	assert.Equal(t, 3*time.Second, g.Window())
	g.MarkDirty(model.CollectionIngredients)
	c.Advance(3 * time.Second)
	assert.True(t, g.AllowReload(model.CollectionIngredients))
}
