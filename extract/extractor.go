// Package extract turns free-text sales messages into sale records with a
// language model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/dawitel/line-sales-bridge/tax"
	"github.com/rs/zerolog"
)

var (
	// ErrNoJSON is returned when the model output contains no JSON object.
	ErrNoJSON = errors.New("model response contains no JSON object")

	// ErrIncomplete is returned when required fields are missing.
	ErrIncomplete = errors.New("model response is missing required fields")

	// ErrModel wraps failures of the model call itself.
	ErrModel = errors.New("model request failed")
)

const promptTemplate = `You extract a single gym store sale from a LINE message written in Japanese.
Today is %s.

Return only a JSON object with these keys:
  "day": integer day of month of the sale (use today's day if the message gives none),
  "seller": customer name,
  "payment_method": payment method, e.g. "PayPal", "PayPay", "現金", "クレジットカード",
  "product_name": product or service, e.g. "月4回プラン", "月8回プラン", "プロテイン",
  "quantity": integer quantity (1 if not stated),
  "unit_price_incl_tax": unit price including tax as an integer, or null,
  "unit_price_excl_tax": unit price excluding tax as an integer, or null.
Prices like "35,200円" are tax-inclusive unless the message says 税抜.
Use null for anything the message does not contain.

Message:
%s`

// candidate is the model's raw answer. Pointers tell missing from zero.
type candidate struct {
	Day              *int     `json:"day"`
	Seller           *string  `json:"seller"`
	PaymentMethod    *string  `json:"payment_method"`
	ProductName      *string  `json:"product_name"`
	Quantity         *int64   `json:"quantity"`
	UnitPriceInclTax *float64 `json:"unit_price_incl_tax"`
	UnitPriceExclTax *float64 `json:"unit_price_excl_tax"`
}

// Extractor parses sale records out of chat text.
type Extractor struct {
	model  Model
	logger zerolog.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor using model.
func NewExtractor(model Model, logger zerolog.Logger) *Extractor {
	return &Extractor{
		model:  model,
		logger: logger,
		now:    time.Now,
	}
}

// Extract asks the model for a sale record and validates it. The returned
// record always carries a tax-exclusive unit price.
func (e *Extractor) Extract(ctx context.Context, text string) (sheets.SaleRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return sheets.SaleRecord{}, fmt.Errorf("%w: empty message", ErrIncomplete)
	}

	prompt := fmt.Sprintf(promptTemplate, e.now().Format("2006-01-02"), text)
	out, err := e.model.Generate(ctx, prompt)
	if err != nil {
		return sheets.SaleRecord{}, fmt.Errorf("%w: %s: %w", ErrModel, e.model.Name(), err)
	}

	e.logger.Debug().Str("model", e.model.Name()).Str("response", out).Msg("Model response received")

	rec, err := Parse(out)
	if err != nil {
		e.logger.Warn().Err(err).Str("response", out).Msg("Unusable model response")
		return sheets.SaleRecord{}, err
	}
	return rec, nil
}

// Parse decodes a model response into a validated SaleRecord.
func Parse(response string) (sheets.SaleRecord, error) {
	start := strings.IndexByte(response, '{')
	if start < 0 {
		return sheets.SaleRecord{}, ErrNoJSON
	}

	// The decoder stops at the end of the first object, so code fences and
	// trailing prose are ignored.
	var c candidate
	if err := json.NewDecoder(strings.NewReader(response[start:])).Decode(&c); err != nil {
		return sheets.SaleRecord{}, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}

	var missing []string
	if c.Day == nil {
		missing = append(missing, "day")
	}
	if c.Seller == nil || strings.TrimSpace(*c.Seller) == "" {
		missing = append(missing, "seller")
	}
	if c.PaymentMethod == nil || strings.TrimSpace(*c.PaymentMethod) == "" {
		missing = append(missing, "payment_method")
	}
	if c.ProductName == nil || strings.TrimSpace(*c.ProductName) == "" {
		missing = append(missing, "product_name")
	}
	if c.UnitPriceInclTax == nil && c.UnitPriceExclTax == nil {
		missing = append(missing, "unit_price")
	}
	if len(missing) > 0 {
		return sheets.SaleRecord{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	rec := sheets.SaleRecord{
		Day:           *c.Day,
		Customer:      strings.TrimSpace(*c.Seller),
		PaymentMethod: strings.TrimSpace(*c.PaymentMethod),
		ProductName:   strings.TrimSpace(*c.ProductName),
		Quantity:      1,
	}
	if c.Quantity != nil {
		rec.Quantity = *c.Quantity
	}

	if c.UnitPriceInclTax != nil {
		incl, err := tax.Yen(*c.UnitPriceInclTax)
		if err != nil {
			return sheets.SaleRecord{}, fmt.Errorf("%w: unit_price_incl_tax: %w", sheets.ErrInvalidRecord, err)
		}
		rec.UnitPriceInclTax = &incl
	}
	if c.UnitPriceExclTax != nil {
		excl, err := tax.Yen(*c.UnitPriceExclTax)
		if err != nil {
			return sheets.SaleRecord{}, fmt.Errorf("%w: unit_price_excl_tax: %w", sheets.ErrInvalidRecord, err)
		}
		rec.UnitPriceExclTax = excl
	} else {
		excl, err := tax.ExclusiveOf(*c.UnitPriceInclTax)
		if err != nil {
			return sheets.SaleRecord{}, fmt.Errorf("%w: %w", sheets.ErrInvalidRecord, err)
		}
		rec.UnitPriceExclTax = excl
	}

	if err := rec.Validate(); err != nil {
		return sheets.SaleRecord{}, err
	}
	return rec, nil
}
