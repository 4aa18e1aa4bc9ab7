package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/costing-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := s.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"catalog.csv", FormatCSV, false},
		{"CATALOG.CSV", FormatCSV, false},
		{"catalog.xlsx", FormatXLSX, false},
		{"catalog.json", "", true},
		{"catalog", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadIngredients_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "catalog.csv", `SKU,Ingredient,UOM,Unit Cost,Waste %,Yield %,Category
# comment rows are ignored
beef,Beef mince,kilograms,$12.50,10%,90,
napkin,Napkin,ea,0.02,,,consumable

salmon,Salmon fillet,kg,"1,250.00",0.05,,
`)

	res, err := LoadIngredients(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, res.Ingredients, 3)
	assert.Empty(t, res.Skipped)

	beef := res.Ingredients[0]
	assert.Equal(t, "beef", beef.ID)
	assert.Equal(t, "Beef mince", beef.Name)
	assert.Equal(t, "kg", beef.Unit)
	require.NotNil(t, beef.CostPerUnit)
	assert.Equal(t, 12.5, *beef.CostPerUnit)
	require.NotNil(t, beef.WastePercent)
	assert.Equal(t, 10.0, *beef.WastePercent)
	require.NotNil(t, beef.YieldPercent)
	assert.Equal(t, 90.0, *beef.YieldPercent)
	assert.Equal(t, model.CategoryNormal, beef.Category)

	napkin := res.Ingredients[1]
	assert.Equal(t, "each", napkin.Unit)
	assert.Nil(t, napkin.WastePercent)
	assert.True(t, napkin.IsConsumable())

	salmon := res.Ingredients[2]
	require.NotNil(t, salmon.CostPerUnit)
	assert.Equal(t, 1250.0, *salmon.CostPerUnit)
	require.NotNil(t, salmon.WastePercent)
	assert.InDelta(t, 5.0, *salmon.WastePercent, 1e-9)
}

func TestLoadIngredients_XLSX(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, "Prices", [][]string{
		{"Name", "Unit", "Cost"},
		{"Flour", "kg", "1.20"},
		{"", "", ""},
		{"Eggs", "dozen", "4.80"},
	})

	res, err := LoadIngredients(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, res.Ingredients, 2)
	assert.Equal(t, "Flour", res.Ingredients[0].Name)
	assert.Empty(t, res.Ingredients[0].ID)
	assert.Equal(t, "dozen", res.Ingredients[1].Unit)
	require.NotNil(t, res.Ingredients[1].CostPerUnit)
	assert.Equal(t, 4.8, *res.Ingredients[1].CostPerUnit)
}

func TestLoadIngredients_XLSXSheetNotFound(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, "Prices", [][]string{{"Name"}, {"Flour"}})
	_, err := LoadIngredients(context.Background(), path, "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestLoadIngredients_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "empty.csv", "")
	_, err := LoadIngredients(context.Background(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestLoadIngredients_CancelledContext(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "catalog.csv", "name\nFlour\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadIngredients(ctx, path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestParseIngredients_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := ParseIngredients([]string{"id", "cost"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name column")
}

func TestParseIngredients_SkipsBadRows(t *testing.T) {
	t.Parallel()

	res, err := ParseIngredients(
		[]string{"name", "cost", "waste"},
		[][]string{
			{"Flour", "1.20", "2"},
			{"", "3", ""},
			{"Sugar", "abc", ""},
			{"Salt", "-1", ""},
			{"Oil", "4", "150"},
			{"Rice"},
		},
	)
	require.NoError(t, err)
	require.Len(t, res.Ingredients, 2)
	assert.Equal(t, "Flour", res.Ingredients[0].Name)
	assert.Equal(t, "Rice", res.Ingredients[1].Name)
	assert.Nil(t, res.Ingredients[1].CostPerUnit)

	require.Len(t, res.Skipped, 4)
	assert.Equal(t, 3, res.Skipped[0].Row)
	assert.Contains(t, res.Skipped[0].Reason, "missing name")
	assert.Contains(t, res.Skipped[1].Reason, "invalid amount")
	assert.Contains(t, res.Skipped[2].Reason, "negative amount")
	assert.Contains(t, res.Skipped[3].Reason, "out of range")
}

func TestParseIngredients_ConsumableFlag(t *testing.T) {
	t.Parallel()

	res, err := ParseIngredients(
		[]string{"name", "consumable"},
		[][]string{{"Box", "Y"}, {"Basil", "n"}},
	)
	require.NoError(t, err)
	assert.True(t, res.Ingredients[0].IsConsumable())
	assert.False(t, res.Ingredients[1].IsConsumable())
}

func TestParsePercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{"", nil, false},
		{"10", model.Float(10), false},
		{"10%", model.Float(10), false},
		{" 12.5 % ", model.Float(12.5), false},
		{"0.25", model.Float(25), false},
		{"0.5%", model.Float(0.5), false},
		{"0", model.Float(0), false},
		{"100", model.Float(100), false},
		{"101", nil, true},
		{"-5", nil, true},
		{"lots", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parsePercent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestNormalizeCol(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "waste_percent", normalizeCol(" Waste % "))
	assert.Equal(t, "yield_percent", normalizeCol("Yield (%)"))
	assert.Equal(t, "cost_per_unit", normalizeCol("Cost-Per-Unit"))
	assert.Equal(t, "name", normalizeCol(`"Name"`))
}
