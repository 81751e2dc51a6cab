package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "opsdesk/internal/sheets"
)

var (
	_ ports.ExpenseWriter = (*Client)(nil)
	_ ports.AlertWriter   = (*Client)(nil)
)

// Options configures the Sheets client. Sheet names are base names; the
// row's year is prefixed ("2024 Expenses") unless the name already starts
// with one.
type Options struct {
	SpreadsheetID   string
	ExpensesSheet   string
	AlertsSheet     string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	alertsSheet   string
}

// New creates a Sheets client authenticated with a service account key.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		expensesSheet: opts.ExpensesSheet,
		alertsSheet:   opts.AlertsSheet,
	}, nil
}

func (c *Client) AppendExpense(ctx context.Context, r ports.ExpenseRow) (string, error) {
	if err := r.Date.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	sheet := yearPrefixedName(c.expensesSheet, r.Date.Year())
	return c.append(ctx, sheet, "A:F", expenseValues(r))
}

func (c *Client) AppendAlert(ctx context.Context, r ports.AlertRow) (string, error) {
	sheet := yearPrefixedName(c.alertsSheet, r.RaisedAt.Year())
	return c.append(ctx, sheet, "A:E", alertValues(r))
}

func (c *Client) append(ctx context.Context, sheet, cols string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// expenseValues lays out Date, Item, Category, Amount, Notes, RecordID.
func expenseValues(r ports.ExpenseRow) []any {
	return []any{r.Date.String(), r.Item, r.Category, r.Amount.Euros(), r.Notes, r.RecordID}
}

// alertValues lays out RaisedAt, Category, Spent, Limit, Percentage.
func alertValues(r ports.AlertRow) []any {
	return []any{r.RaisedAt.UTC().Format(time.RFC3339), r.Category, r.Spent.Euros(), r.Limit.Euros(), r.Percentage}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
