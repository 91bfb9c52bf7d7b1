package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dawitel/line-sales-bridge/sheets"
	"github.com/dawitel/line-sales-bridge/tax"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	response string
	err      error
	prompt   string
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func Test_Extract_Converts_Inclusive_Price(t *testing.T) {
	req := require.New(t)
	model := &fakeModel{response: "```json\n" + `{"day": 28, "seller": "服部誉也", "payment_method": "PayPal", "product_name": "月4回プラン", "quantity": 1, "unit_price_incl_tax": 35200, "unit_price_excl_tax": null}` + "\n```"}

	e := NewExtractor(model, zerolog.Nop())
	e.now = func() time.Time { return time.Date(2025, 12, 26, 9, 0, 0, 0, time.UTC) }

	rec, err := e.Extract(context.Background(), "12/28 服部誉也さん PayPalで月4回プラン 35,200円")
	req.NoError(err)
	req.Equal(28, rec.Day)
	req.Equal("服部誉也", rec.Customer)
	req.Equal(int64(32000), rec.UnitPriceExclTax)
	req.NotNil(rec.UnitPriceInclTax)
	req.Equal(int64(35200), *rec.UnitPriceInclTax)
	req.Contains(model.prompt, "2025-12-26")
	req.Contains(model.prompt, "35,200円")
}

func Test_Parse_Prefers_Explicit_Exclusive_Price(t *testing.T) {
	req := require.New(t)
	rec, err := Parse(`Here you go: {"day": 3, "seller": "佐藤", "payment_method": "現金", "product_name": "プロテイン", "quantity": 2, "unit_price_excl_tax": 4000}`)
	req.NoError(err)
	req.Equal(int64(4000), rec.UnitPriceExclTax)
	req.Equal(int64(2), rec.Quantity)
	req.Nil(rec.UnitPriceInclTax)
}

func Test_Parse_Defaults_Quantity(t *testing.T) {
	rec, err := Parse(`{"day": 1, "seller": "a", "payment_method": "b", "product_name": "c", "unit_price_incl_tax": 8800}`)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Quantity)
	require.Equal(t, int64(8000), rec.UnitPriceExclTax)
}

func Test_Parse_Missing_Fields(t *testing.T) {
	req := require.New(t)
	_, err := Parse(`{"day": null, "seller": "", "payment_method": "PayPal", "product_name": "月4回プラン"}`)
	req.ErrorIs(err, ErrIncomplete)
	req.True(strings.Contains(err.Error(), "day"))
	req.True(strings.Contains(err.Error(), "seller"))
	req.True(strings.Contains(err.Error(), "unit_price"))
}

func Test_Parse_Not_JSON(t *testing.T) {
	req := require.New(t)
	_, err := Parse("I could not find a sale in this message.")
	req.ErrorIs(err, ErrNoJSON)

	_, err = Parse(`{"day": 28, "seller": "unterminated`)
	req.ErrorIs(err, ErrNoJSON)
}

func Test_Parse_Invalid_Values(t *testing.T) {
	req := require.New(t)
	_, err := Parse(`{"day": 40, "seller": "a", "payment_method": "b", "product_name": "c", "unit_price_excl_tax": 100}`)
	req.ErrorIs(err, sheets.ErrInvalidRecord)

	_, err = Parse(`{"day": 4, "seller": "a", "payment_method": "b", "product_name": "c", "unit_price_incl_tax": -100}`)
	req.ErrorIs(err, sheets.ErrInvalidRecord)
}

func Test_Parse_Rejects_Huge_Prices(t *testing.T) {
	req := require.New(t)
	_, err := Parse(`{"day": 4, "seller": "a", "payment_method": "b", "product_name": "c", "unit_price_incl_tax": 1e20}`)
	req.ErrorIs(err, sheets.ErrInvalidRecord)
	req.ErrorIs(err, tax.ErrPriceOutOfRange)

	_, err = Parse(`{"day": 4, "seller": "a", "payment_method": "b", "product_name": "c", "unit_price_excl_tax": 9.3e18}`)
	req.ErrorIs(err, sheets.ErrInvalidRecord)
	req.ErrorIs(err, tax.ErrPriceOutOfRange)
}

func Test_Parse_Braces_Inside_Strings(t *testing.T) {
	rec, err := Parse(`{"day": 5, "seller": "a}b", "payment_method": "現金", "product_name": "{x}", "unit_price_excl_tax": 1000} trailing`)
	require.NoError(t, err)
	require.Equal(t, "a}b", rec.Customer)
}

func Test_Extract_Model_Error(t *testing.T) {
	req := require.New(t)
	boom := errors.New("quota")
	e := NewExtractor(&fakeModel{err: boom}, zerolog.Nop())

	_, err := e.Extract(context.Background(), "something")
	req.ErrorIs(err, boom)
	req.ErrorIs(err, ErrModel)

	_, err = e.Extract(context.Background(), "   ")
	req.ErrorIs(err, ErrIncomplete)
}
