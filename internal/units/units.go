// Package units converts ingredient prices between units of measure.
package units

import (
	"strings"
)

// Kind groups units that can be converted into each other.
type Kind string

const (
	KindMass   Kind = "mass"   // base: g
	KindVolume Kind = "volume" // base: ml
	KindCount  Kind = "count"  // base: each
)

// Converter converts a price expressed per fromUnit into a price per toUnit.
// Implementations must not fail: units they cannot relate are returned
// unscaled and the caller treats toUnit as authoritative.
type Converter interface {
	Convert(value float64, fromUnit, toUnit string, contextQuantity float64) float64
}

type unitDef struct {
	kind       Kind
	toBaseUnit float64
}

var defaultTable = map[string]unitDef{
	"mg": {kind: KindMass, toBaseUnit: 0.001},
	"g":  {kind: KindMass, toBaseUnit: 1},
	"kg": {kind: KindMass, toBaseUnit: 1000},
	"oz": {kind: KindMass, toBaseUnit: 28.349523125},
	"lb": {kind: KindMass, toBaseUnit: 453.59237},

	"ml":    {kind: KindVolume, toBaseUnit: 1},
	"l":     {kind: KindVolume, toBaseUnit: 1000},
	"tsp":   {kind: KindVolume, toBaseUnit: 4.92892159375},
	"tbsp":  {kind: KindVolume, toBaseUnit: 14.78676478125},
	"cup":   {kind: KindVolume, toBaseUnit: 236.5882365},
	"fl oz": {kind: KindVolume, toBaseUnit: 29.5735295625},

	"each":  {kind: KindCount, toBaseUnit: 1},
	"dozen": {kind: KindCount, toBaseUnit: 12},
}

var aliases = map[string]string{
	"gram": "g", "grams": "g", "gr": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"milligram": "mg", "milligrams": "mg",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"millilitre": "ml", "milliliter": "ml", "millilitres": "ml", "milliliters": "ml",
	"litre": "l", "liter": "l", "litres": "l", "liters": "l", "ltr": "l",
	"teaspoon": "tsp", "teaspoons": "tsp",
	"tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp",
	"cups": "cup",
	"fl-oz": "fl oz", "floz": "fl oz", "fl. oz": "fl oz", "fluid ounce": "fl oz", "fluid ounces": "fl oz",
	"ea": "each", "pc": "each", "pcs": "each", "piece": "each", "pieces": "each", "unit": "each", "units": "each",
	"dz": "dozen",
}

// Normalize lowercases a unit string and resolves known aliases. Unknown
// units are returned trimmed and lowercased.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.Join(strings.Fields(u), " ")
	if canonical, ok := aliases[u]; ok {
		return canonical
	}
	return u
}

// Lookup returns the kind of a unit, or false when the unit is unknown.
func Lookup(unit string) (Kind, bool) {
	def, ok := defaultTable[Normalize(unit)]
	return def.kind, ok
}

// Convertible reports whether a price can be rescaled between the two units.
func Convertible(fromUnit, toUnit string) bool {
	from, ok := defaultTable[Normalize(fromUnit)]
	if !ok {
		return false
	}
	to, ok := defaultTable[Normalize(toUnit)]
	if !ok {
		return false
	}
	return from.kind == to.kind
}

// Table is the default Converter backed by the built-in mass, volume and
// count tables.
type Table struct{}

// Convert rescales a per-unit price. A price of $2.00/kg becomes $0.002/g.
// contextQuantity is ignored by the table; it is part of the contract for
// converters that price by pack size.
func (Table) Convert(value float64, fromUnit, toUnit string, _ float64) float64 {
	from, ok := defaultTable[Normalize(fromUnit)]
	if !ok {
		return value
	}
	to, ok := defaultTable[Normalize(toUnit)]
	if !ok || from.kind != to.kind {
		return value
	}
	// price per from * (from per to)
	return value * to.toBaseUnit / from.toBaseUnit
}
