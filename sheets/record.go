package sheets

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SaleRecord is one sale to append to the monthly sheet.
type SaleRecord struct {
	Day              int    `json:"day" validate:"min=1,max=31"`
	Customer         string `json:"seller" validate:"required"`
	PaymentMethod    string `json:"payment_method" validate:"required"`
	ProductName      string `json:"product_name" validate:"required"`
	Quantity         int64  `json:"quantity" validate:"min=1"`
	UnitPriceExclTax int64  `json:"unit_price_excl_tax" validate:"min=0"`

	// UnitPriceInclTax is the price as stated by the customer, when known.
	// It feeds the tax-inclusive subtotal column.
	UnitPriceInclTax *int64 `json:"unit_price_incl_tax,omitempty" validate:"omitempty,min=0"`
}

// Validate checks that every required field is present and in range.
func (r SaleRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Result reports the outcome of a write.
type Result struct {
	Success   bool   `json:"success"`
	Row       int    `json:"row"`
	Message   string `json:"message"`
	SheetName string `json:"sheet_name,omitempty"`
}

// Layout describes the current monthly sheet.
type Layout struct {
	Headers  []string `json:"headers"`
	NextRow  int      `json:"next_row"`
	Trainers []string `json:"trainers"`
}
