package cost

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/costing-cli/internal/model"
)

var (
	// ErrInvalidQuantity is returned for a quantity of zero or less.
	ErrInvalidQuantity = eris.New("cost: quantity must be greater than zero")
	// ErrMissingIngredient is returned when no ingredient was selected.
	ErrMissingIngredient = eris.New("cost: ingredient is required")
)

// ValidateLine checks user input before it reaches the calculator.
func ValidateLine(li model.LineItem) error {
	if li.IngredientID == "" {
		return ErrMissingIngredient
	}
	if li.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
