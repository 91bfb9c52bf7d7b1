// Package sheets appends sale records to the monthly store-management
// spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"github.com/dawitel/line-sales-bridge/tax"
	"github.com/rs/zerolog"
)

// Sheet layout. Row and column numbers are 1-based.
const (
	DefaultTemplateName = "テンプレート"
	headerRow           = 4
	firstDataRow        = 5
	dayColumn           = 3  // C
	trainerColumn       = 13 // M
)

var (
	// ErrTemplateNotFound is returned when the month sheet is missing and
	// there is no template to create it from.
	ErrTemplateNotFound = errors.New("template sheet not found")

	// ErrInvalidRecord wraps validation failures of a SaleRecord.
	ErrInvalidRecord = errors.New("invalid sale record")
)

// Recorder records a sale and reports where it landed.
type Recorder interface {
	RecordSale(ctx context.Context, rec SaleRecord) (Result, error)
}

// Writer writes sale rows into the sheet for the current month, creating
// it from the template sheet when needed.
type Writer struct {
	// mu serializes RecordSale from the row lookup through the write.
	mu       sync.Mutex
	backend  Backend
	guard    *resilience.Guard
	logger   zerolog.Logger
	template string
	now      func() time.Time
}

// NewWriter creates a Writer over backend. An empty template uses
// DefaultTemplateName.
func NewWriter(backend Backend, guard *resilience.Guard, template string, logger zerolog.Logger) *Writer {
	if template == "" {
		template = DefaultTemplateName
	}
	return &Writer{
		backend:  backend,
		guard:    guard,
		logger:   logger,
		template: template,
		now:      time.Now,
	}
}

// MonthSheetName returns the worksheet name for t, e.g. "12 月度".
func MonthSheetName(t time.Time) string {
	return fmt.Sprintf("%d 月度", int(t.Month()))
}

// Title returns the spreadsheet title.
func (w *Writer) Title(ctx context.Context) (string, error) {
	var title string
	err := w.guard.Execute(ctx, "sheets_title", func(ctx context.Context) error {
		var err error
		title, err = w.backend.Title(ctx)
		return err
	})
	return title, err
}

// CurrentSheet returns the name of this month's worksheet, creating it from
// the template when it does not exist.
func (w *Writer) CurrentSheet(ctx context.Context) (string, error) {
	name := MonthSheetName(w.now())

	var tabs []Tab
	err := w.guard.Execute(ctx, "sheets_tabs", func(ctx context.Context) error {
		var err error
		tabs, err = w.backend.Tabs(ctx)
		return err
	})
	if err != nil {
		return "", err
	}

	var template *Tab
	for i := range tabs {
		switch tabs[i].Title {
		case name:
			return name, nil
		case w.template:
			template = &tabs[i]
		}
	}

	w.logger.Warn().Str("sheet", name).Msg("Month sheet not found, creating from template")

	if template == nil {
		w.logger.Error().Str("template", w.template).Msg("Template sheet not found")
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, w.template)
	}

	err = w.guard.Execute(ctx, "sheets_duplicate", func(ctx context.Context) error {
		return w.backend.DuplicateTab(ctx, template.ID, name)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create sheet %q: %w", name, err)
	}

	w.logger.Info().Str("sheet", name).Int64("template_id", template.ID).Msg("Month sheet created")
	return name, nil
}

// Layout reads the headers, the next empty row and the trainer list of
// this month's sheet.
func (w *Writer) Layout(ctx context.Context) (Layout, string, error) {
	name, err := w.CurrentSheet(ctx)
	if err != nil {
		return Layout{}, "", err
	}

	var rows [][]interface{}
	err = w.guard.Execute(ctx, "sheets_values", func(ctx context.Context) error {
		var err error
		rows, err = w.backend.Values(ctx, quoteSheet(name))
		return err
	})
	if err != nil {
		return Layout{}, name, err
	}

	return layoutOf(rows), name, nil
}

// RecordSale appends rec to this month's sheet. A failed write is reported
// as an unsuccessful Result; failures before the write are returned as
// errors.
func (w *Writer) RecordSale(ctx context.Context, rec SaleRecord) (Result, error) {
	if err := rec.Validate(); err != nil {
		return Result{}, err
	}

	w.logger.Info().
		Int("day", rec.Day).
		Str("customer", rec.Customer).
		Str("payment_method", rec.PaymentMethod).
		Str("product_name", rec.ProductName).
		Int64("quantity", rec.Quantity).
		Int64("unit_price_excl_tax", rec.UnitPriceExclTax).
		Msg("Recording sale")

	w.mu.Lock()
	defer w.mu.Unlock()

	layout, name, err := w.Layout(ctx)
	if err != nil {
		return Result{}, err
	}
	row := layout.NextRow

	values := rowValues(rec)
	rng := fmt.Sprintf("%s!C%d:J%d", quoteSheet(name), row, row)

	err = w.guard.Execute(ctx, "sheets_update", func(ctx context.Context) error {
		return w.backend.Update(ctx, rng, [][]interface{}{values})
	})
	if err != nil {
		w.logger.Error().Err(err).Str("range", rng).Msg("Failed to write sale")
		return Result{
			Success:   false,
			Row:       row,
			Message:   fmt.Sprintf("エラー: %v", err),
			SheetName: name,
		}, nil
	}

	w.logger.Info().Str("sheet", name).Int("row", row).Msg("Sale recorded")

	return Result{
		Success:   true,
		Row:       row,
		Message:   fmt.Sprintf("売上を %d 行目に記録しました", row),
		SheetName: name,
	}, nil
}

// rowValues builds columns C through J.
func rowValues(rec SaleRecord) []interface{} {
	subtotalIncl := tax.InclusiveSubtotal(rec.Quantity, rec.UnitPriceExclTax)
	if rec.UnitPriceInclTax != nil {
		subtotalIncl = rec.Quantity * *rec.UnitPriceInclTax
	}

	return []interface{}{
		rec.Day,
		rec.Customer,
		rec.PaymentMethod,
		rec.ProductName,
		rec.Quantity,
		rec.UnitPriceExclTax,
		subtotalIncl,
		tax.Consumption(rec.Quantity, rec.UnitPriceExclTax),
	}
}

// layoutOf derives the sheet layout from its values. The next row is the
// first data row with an empty day column, or the row after the last one.
func layoutOf(rows [][]interface{}) Layout {
	layout := Layout{Headers: []string{}, Trainers: []string{}}

	if len(rows) >= headerRow {
		for _, cell := range rows[headerRow-1] {
			layout.Headers = append(layout.Headers, cellString(cell))
		}
	}

	for i := firstDataRow - 1; i < len(rows); i++ {
		if v := cellAt(rows[i], trainerColumn); v != "" {
			layout.Trainers = append(layout.Trainers, v)
		}
	}

	layout.NextRow = max(len(rows)+1, firstDataRow)
	for i := firstDataRow - 1; i < len(rows); i++ {
		if cellAt(rows[i], dayColumn) == "" {
			layout.NextRow = i + 1
			break
		}
	}

	return layout
}

func cellAt(row []interface{}, column int) string {
	if column-1 >= len(row) {
		return ""
	}
	return cellString(row[column-1])
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
