package autosave

import (
	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sells-group/costing-cli/internal/model"
)

// snapshotLine is the canonical, order-preserving form of a line item.
type snapshotLine struct {
	_msgpack struct{} `msgpack:",as_array"`

	IngredientID string
	Quantity     float64
	Unit         string
}

// EncodeSnapshot serializes line items to their canonical form. Two
// collections with the same ordered (ingredient, quantity, unit) triples
// always encode to the same bytes.
func EncodeSnapshot(items []model.LineItem) (string, error) {
	lines := make([]snapshotLine, len(items))
	for i, it := range items {
		lines[i] = snapshotLine{IngredientID: it.IngredientID, Quantity: it.Quantity, Unit: it.Unit}
	}
	b, err := msgpack.Marshal(lines)
	if err != nil {
		return "", eris.Wrap(err, "autosave: encode snapshot")
	}
	return string(b), nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(snapshot string) ([]model.LineItem, error) {
	var lines []snapshotLine
	if err := msgpack.Unmarshal([]byte(snapshot), &lines); err != nil {
		return nil, eris.Wrap(err, "autosave: decode snapshot")
	}
	items := make([]model.LineItem, len(lines))
	for i, l := range lines {
		items[i] = model.LineItem{IngredientID: l.IngredientID, Quantity: l.Quantity, Unit: l.Unit}
	}
	return items, nil
}
