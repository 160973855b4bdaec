package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/log"
	"ledger/internal/sheets"
)

// Config selects the target spreadsheet and the service account used to
// reach it. ServiceAccountJSON wins over ServiceAccountFile.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	Location           *time.Location
}

// Client rewrites one sheet of a spreadsheet with ledger snapshots.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	logger        *log.Logger
}

var _ sheets.Exporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger)
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.Discard()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		loc:           loc,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// Export clears the sheet, creating it when missing, and writes snap.
func (c *Client) Export(ctx context.Context, snap sheets.Snapshot) (sheets.Result, error) {
	start := time.Now()
	if err := c.ensureSheet(ctx); err != nil {
		return sheets.Result{}, err
	}

	whole := quoteSheet(c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, whole, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return sheets.Result{}, fmt.Errorf("clear %s: %w", whole, err)
	}

	values := sheets.BuildValues(snap, c.loc)
	rng := whole + "!A1"
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return sheets.Result{}, fmt.Errorf("write %s: %w", rng, err)
	}

	res := sheets.Result{Range: resp.UpdatedRange, Rows: int(resp.UpdatedRows)}
	c.logger.InfoContext(ctx, "ledger exported",
		log.FieldOperation, log.OpExport,
		log.FieldSheetsRange, res.Range,
		log.FieldRecords, len(snap.Records),
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

func (c *Client) ensureSheet(ctx context.Context) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: c.sheetName}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "sheet created", "sheet", c.sheetName)
	return nil
}

// quoteSheet returns the sheet name in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
