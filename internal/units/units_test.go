package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"KG", "kg"},
		{" grams ", "g"},
		{"Fl  Oz", "fl oz"},
		{"fl-oz", "fl oz"},
		{"Tablespoons", "tbsp"},
		{"pcs", "each"},
		{"bunch", "bunch"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTable_Convert(t *testing.T) {
	t.Parallel()

	conv := Table{}
	tests := []struct {
		name  string
		value float64
		from  string
		to    string
		want  float64
	}{
		{"same unit", 2.0, "kg", "kg", 2.0},
		{"kg to g", 2.0, "kg", "g", 0.002},
		{"g to kg", 0.005, "g", "kg", 5.0},
		{"lb to oz", 16.0, "lb", "oz", 1.0},
		{"l to ml", 3.0, "l", "ml", 0.003},
		{"ml to cup", 0.01, "ml", "cup", 2.365882365},
		{"tbsp to tsp", 3.0, "tbsp", "tsp", 1.0},
		{"dozen to each", 6.0, "dozen", "each", 0.5},
		{"alias", 2.0, "Kilograms", "grams", 0.002},
		{"mass to volume falls back", 2.0, "kg", "ml", 2.0},
		{"unknown from falls back", 2.0, "bunch", "g", 2.0},
		{"unknown to falls back", 2.0, "kg", "handful", 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, conv.Convert(tt.value, tt.from, tt.to, 1), 1e-9)
		})
	}
}

func TestConvertible(t *testing.T) {
	t.Parallel()

	assert.True(t, Convertible("kg", "oz"))
	assert.True(t, Convertible("cup", "fl oz"))
	assert.False(t, Convertible("kg", "cup"))
	assert.False(t, Convertible("kg", "bunch"))
}

func TestLookup(t *testing.T) {
	t.Parallel()

	kind, ok := Lookup("Litres")
	assert.True(t, ok)
	assert.Equal(t, KindVolume, kind)

	_, ok = Lookup("pinch")
	assert.False(t, ok)
}
