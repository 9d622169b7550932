// Package export pushes payout monitoring data to Google Sheets.
package export

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/cubixnet/comp/internal/reconcile"
)

const payoutSheet = "PAYOUTS"

// SheetsExporter appends one monitoring row per reconciliation run to a
// spreadsheet. It implements the worker's post-run hook.
type SheetsExporter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsExporter creates a SheetsExporter authenticated with a service account JSON.
func NewSheetsExporter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsExporter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsExporter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Export appends the run summary to the PAYOUTS sheet, creating the
// sheet with its header row on first use.
func (e *SheetsExporter) Export(ctx context.Context, summary reconcile.Summary) error {
	if err := e.ensurePayoutSheet(ctx); err != nil {
		return err
	}

	_, err := e.svc.Spreadsheets.Values.Append(
		e.spreadsheetID,
		payoutSheet+"!A1",
		&sheets.ValueRange{Values: [][]any{buildPayoutRow(summary)}},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending payout row: %w", err)
	}
	return nil
}

// payoutHeader lists the PAYOUTS sheet columns.
func payoutHeader() []any {
	return []any{"Date", "Scanned", "Released", "Released amount", "Capped amount", "Still held", "Failed"}
}

// buildPayoutRow builds one sheet row from a run summary.
func buildPayoutRow(summary reconcile.Summary) []any {
	return []any{
		summary.RunAt.Format("2006-01-02 15:04:05"),
		summary.Scanned,
		summary.Released,
		toFloat(summary.ReleasedAmount),
		toFloat(summary.CappedAmount),
		summary.StillHeld,
		summary.Failed,
	}
}

// ensurePayoutSheet creates the PAYOUTS sheet with its header if it does
// not already exist.
func (e *SheetsExporter) ensurePayoutSheet(ctx context.Context) error {
	spreadsheet, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties.Title == payoutSheet {
			return nil
		}
	}

	_, err = e.svc.Spreadsheets.BatchUpdate(
		e.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: payoutSheet},
				},
			}},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating payout sheet: %w", err)
	}

	_, err = e.svc.Spreadsheets.Values.Update(
		e.spreadsheetID,
		payoutSheet+"!A1",
		&sheets.ValueRange{Values: [][]any{payoutHeader()}},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing payout header: %w", err)
	}
	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
