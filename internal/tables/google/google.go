// Package google is a table store backed by a Google Sheets spreadsheet:
// one tab per collection, a header row of column names, one row per record.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"dompet/internal/cache"
	"dompet/internal/tables"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Tab title -> numeric sheet id, needed for row deletion.
	sheetIDs *cache.LRUCache[int64]
	// Row positions shift on delete; writes are serialized.
	mu sync.Mutex
}

var _ tables.Store = (*Client)(nil)

// New creates a Sheets-backed store using Service Account credentials and
// makes sure every collection has its tab and header row.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	c := NewWithService(svc, cfg.SpreadsheetID)
	if err := c.EnsureTabs(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      cache.NewLRUCache[int64](16, time.Hour),
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if len(credentialsJSON) == 0 {
		if file == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// EnsureTabs adds a tab with a header row for every collection missing one.
func (c *Client) EnsureTabs(ctx context.Context) error {
	ids, err := c.loadSheetIDs(ctx)
	if err != nil {
		return err
	}
	var reqs []*gsheet.Request
	var missing []tables.Collection
	for _, col := range tables.All() {
		if _, ok := ids[string(col)]; ok {
			continue
		}
		missing = append(missing, col)
		reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
			Properties: &gsheet.SheetProperties{Title: string(col)},
		}})
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add tabs: %w", err)
	}
	for _, col := range missing {
		sc, _ := tables.SchemaOf(col)
		header := make([]any, len(sc.Columns))
		for i, n := range sc.Names() {
			header[i] = n
		}
		rng := fmt.Sprintf("%s!A1:%s1", col, columnLetter(len(header)))
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header for %s: %w", col, err)
		}
		slog.InfoContext(ctx, "Created sheet tab", "collection", col)
	}
	return nil
}

func (c *Client) loadSheetIDs(ctx context.Context) (map[string]int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		ids[sh.Properties.Title] = sh.Properties.SheetId
		c.sheetIDs.Set(sh.Properties.Title, sh.Properties.SheetId)
	}
	return ids, nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	if id, ok := c.sheetIDs.Get(title); ok {
		return id, nil
	}
	ids, err := c.loadSheetIDs(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := ids[title]
	if !ok {
		return 0, fmt.Errorf("no tab named %s", title)
	}
	return id, nil
}

// readTab returns the header and data rows of a collection's tab.
func (c *Client) readTab(ctx context.Context, sc tables.Schema) ([]string, [][]any, error) {
	rng := fmt.Sprintf("%s!A:%s", sc.Collection, columnLetter(len(sc.Columns)))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return sc.Names(), nil, nil
	}
	return toStrings(resp.Values[0]), resp.Values[1:], nil
}

func (c *Client) Select(ctx context.Context, col tables.Collection, q tables.Query) ([]tables.Row, error) {
	sc, err := tables.SchemaOf(col)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(sc); err != nil {
		return nil, err
	}
	header, data, err := c.readTab(ctx, sc)
	if err != nil {
		return nil, err
	}
	rows := make([]tables.Row, 0, len(data))
	for i, cells := range data {
		r, err := cellsToRow(sc, header, cells)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable sheet row", "collection", col, "row", i+2, "error", err)
			continue
		}
		if r.ID() == "" {
			continue
		}
		rows = append(rows, r)
	}
	return q.Apply(rows), nil
}

func (c *Client) Insert(ctx context.Context, col tables.Collection, rows ...tables.Row) ([]tables.Row, error) {
	sc, err := tables.SchemaOf(col)
	if err != nil {
		return nil, err
	}
	out := make([]tables.Row, 0, len(rows))
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		n, err := sc.Normalize(r)
		if err != nil {
			return nil, err
		}
		if n.ID() == "" {
			return nil, tables.ErrMissingID
		}
		values = append(values, rowToCells(sc.Names(), n))
		out = append(out, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, string(col)+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("append to %s: %w", col, err)
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, col tables.Collection, id string, fields tables.Row) error {
	sc, err := tables.SchemaOf(col)
	if err != nil {
		return err
	}
	n, err := sc.Normalize(fields)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	header, data, err := c.readTab(ctx, sc)
	if err != nil {
		return err
	}
	idx := findRow(data, id)
	if idx < 0 {
		return nil
	}
	current, err := cellsToRow(sc, header, data[idx])
	if err != nil {
		return err
	}
	for k, v := range n {
		if k != "id" {
			current[k] = v
		}
	}
	sheetRow := idx + 2
	rng := fmt.Sprintf("%s!A%d:%s%d", col, sheetRow, columnLetter(len(header)), sheetRow)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{rowToCells(header, current)}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, col tables.Collection, id string) error {
	sc, err := tables.SchemaOf(col)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, data, err := c.readTab(ctx, sc)
	if err != nil {
		return err
	}
	idx := findRow(data, id)
	if idx < 0 {
		return nil
	}
	sheetID, err := c.sheetID(ctx, string(col))
	if err != nil {
		return err
	}
	// Zero-based and header-adjusted: data[idx] lives at grid row idx+1.
	req := &gsheet.Request{DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
		SheetId:    sheetID,
		Dimension:  "ROWS",
		StartIndex: int64(idx + 1),
		EndIndex:   int64(idx + 2),
	}}}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{req}}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", col, id, err)
	}
	return nil
}
