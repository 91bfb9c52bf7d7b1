package sheets

import "context"

// Tab is one worksheet of the spreadsheet.
type Tab struct {
	ID    int64
	Title string
}

// Backend is the subset of the spreadsheet API the Writer needs.
type Backend interface {
	// Title returns the spreadsheet title.
	Title(ctx context.Context) (string, error)

	// Tabs lists the worksheets.
	Tabs(ctx context.Context) ([]Tab, error)

	// DuplicateTab copies the worksheet sourceID under a new title.
	DuplicateTab(ctx context.Context, sourceID int64, title string) error

	// Values reads a range in A1 notation.
	Values(ctx context.Context, rng string) ([][]interface{}, error)

	// Update overwrites a range in A1 notation.
	Update(ctx context.Context, rng string, values [][]interface{}) error
}
