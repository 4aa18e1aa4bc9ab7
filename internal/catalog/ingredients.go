package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/units"
)

// columnAliases maps normalized header names onto ingredient fields.
var columnAliases = map[string]string{
	"id":                      "id",
	"sku":                     "id",
	"code":                    "id",
	"name":                    "name",
	"ingredient":              "name",
	"description":             "name",
	"unit":                    "unit",
	"uom":                     "unit",
	"cost":                    "cost",
	"price":                   "cost",
	"cost_per_unit":           "cost",
	"unit_cost":               "cost",
	"cost_per_unit_incl_trim": "trim_cost",
	"trimmed_cost":            "trim_cost",
	"cost_incl_trim":          "trim_cost",
	"waste":                   "waste",
	"waste_percent":           "waste",
	"waste_pct":               "waste",
	"yield":                   "yield",
	"yield_percent":           "yield",
	"yield_pct":               "yield",
	"category":                "category",
	"type":                    "category",
	"consumable":              "consumable",
}

// RowError describes a data row that could not be imported.
type RowError struct {
	Row    int // 1-based, header is row 1
	Reason string
}

// ImportResult holds parsed ingredients and the rows that were skipped.
type ImportResult struct {
	Ingredients []model.Ingredient
	Skipped     []RowError
}

// LoadIngredients reads a CSV or XLSX catalog from disk.
func LoadIngredients(ctx context.Context, path, sheet string) (*ImportResult, error) {
	rows, err := ReadRows(ctx, path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("catalog: %s is empty", path)
	}
	return ParseIngredients(rows[0], rows[1:])
}

// ParseIngredients maps header-named columns onto ingredients. A name column
// is required. Bad rows are skipped and reported rather than failing the
// whole import.
func ParseIngredients(header []string, rows [][]string) (*ImportResult, error) {
	cols := mapColumns(header)
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("catalog: header has no name column")
	}

	res := &ImportResult{Ingredients: make([]model.Ingredient, 0, len(rows))}
	for i, record := range rows {
		ing, err := parseIngredient(record, cols)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: i + 2, Reason: err.Error()})
			continue
		}
		res.Ingredients = append(res.Ingredients, ing)
	}

	if len(res.Skipped) > 0 {
		zap.L().Debug("catalog: skipped rows", zap.Int("count", len(res.Skipped)))
	}
	return res, nil
}

func parseIngredient(record []string, cols map[string]int) (model.Ingredient, error) {
	ing := model.Ingredient{
		ID:       getCol(record, cols, "id"),
		Name:     getCol(record, cols, "name"),
		Unit:     units.Normalize(getCol(record, cols, "unit")),
		Category: model.CategoryNormal,
	}
	if ing.Name == "" {
		return ing, eris.New("missing name")
	}
	if ing.Unit == "" {
		ing.Unit = "each"
	}

	var err error
	if ing.CostPerUnit, err = parseMoney(getCol(record, cols, "cost")); err != nil {
		return ing, eris.Wrap(err, "cost")
	}
	if ing.CostPerUnitInclTrim, err = parseMoney(getCol(record, cols, "trim_cost")); err != nil {
		return ing, eris.Wrap(err, "trimmed cost")
	}
	if ing.WastePercent, err = parsePercent(getCol(record, cols, "waste")); err != nil {
		return ing, eris.Wrap(err, "waste")
	}
	if ing.YieldPercent, err = parsePercent(getCol(record, cols, "yield")); err != nil {
		return ing, eris.Wrap(err, "yield")
	}

	switch strings.ToLower(getCol(record, cols, "category")) {
	case string(model.CategoryConsumable), "packaging", "disposable":
		ing.Category = model.CategoryConsumable
	}
	if parseBool(getCol(record, cols, "consumable")) {
		ing.Category = model.CategoryConsumable
	}
	return ing, nil
}

func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		name := normalizeCol(col)
		field, ok := columnAliases[name]
		if !ok {
			continue
		}
		if _, dup := m[field]; !dup {
			m[field] = i
		}
	}
	return m
}

func normalizeCol(col string) string {
	col = strings.ToLower(strings.TrimSpace(col))
	col = strings.Trim(col, `"`)
	col = strings.NewReplacer(" ", "_", "-", "_", "(%)", "percent", "%", "percent").Replace(col)
	return strings.Trim(col, "_")
}

func getCol(record []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseMoney accepts "12.50", "$12.50" and "1,250.00". Empty means unknown.
func parseMoney(s string) (*float64, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Errorf("invalid amount %q", s)
	}
	if v < 0 {
		return nil, eris.Errorf("negative amount %q", s)
	}
	return &v, nil
}

// parsePercent accepts "10", "10%" and bare fractions like "0.1" (read as
// 10%, which is how spreadsheets export percent-formatted cells).
func parsePercent(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	explicit := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Errorf("invalid percent %q", s)
	}
	if !explicit && v > 0 && v < 1 {
		v *= 100
	}
	if v < 0 || v > 100 {
		return nil, eris.Errorf("percent %q out of range", s)
	}
	return &v, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "x":
		return true
	}
	return false
}
