package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dawitel/line-sales-bridge/internal/resilience"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// GoogleBackend talks to the Google Sheets API with a service account.
type GoogleBackend struct {
	srv           *gsheets.Service
	spreadsheetID string
}

// NewGoogleBackend creates a Sheets API client for one spreadsheet.
func NewGoogleBackend(ctx context.Context, spreadsheetID string, credentialsJSON []byte) (*GoogleBackend, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	srv, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleBackend{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (g *GoogleBackend) Title(ctx context.Context) (string, error) {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("failed to open spreadsheet: %w", err))
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

func (g *GoogleBackend) Tabs(ctx context.Context) ([]Tab, error) {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open spreadsheet: %w", err))
	}

	tabs := make([]Tab, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		tabs = append(tabs, Tab{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return tabs, nil
}

func (g *GoogleBackend) DuplicateTab(ctx context.Context, sourceID int64, title string) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DuplicateSheet: &gsheets.DuplicateSheetRequest{
				SourceSheetId: sourceID,
				NewSheetName:  title,
			},
		}},
	}
	if _, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify(fmt.Errorf("failed to duplicate sheet: %w", err))
	}
	return nil
}

func (g *GoogleBackend) Values(ctx context.Context, rng string) ([][]interface{}, error) {
	vr, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read %s: %w", rng, err))
	}
	return vr.Values, nil
}

func (g *GoogleBackend) Update(ctx context.Context, rng string, values [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify(fmt.Errorf("failed to update %s: %w", rng, err))
	}
	return nil
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return resilience.Stop(err)
		}
	}
	return err
}
