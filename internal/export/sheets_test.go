package export

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/reconcile"
)

func TestBuildPayoutRow(t *testing.T) {
	summary := reconcile.Summary{
		RunAt:          time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC),
		Scanned:        12,
		Released:       9,
		ReleasedAmount: decimal.RequireFromString("431.25"),
		CappedAmount:   decimal.NewFromInt(20),
		StillHeld:      2,
		Failed:         1,
	}

	row := buildPayoutRow(summary)
	if len(row) != len(payoutHeader()) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(payoutHeader()))
	}
	if row[0] != "2026-08-29 06:00:00" {
		t.Errorf("date cell = %v", row[0])
	}
	if row[1] != 12 || row[2] != 9 || row[5] != 2 || row[6] != 1 {
		t.Errorf("count cells = %v %v %v %v", row[1], row[2], row[5], row[6])
	}
	if row[3] != 431.25 || row[4] != 20.0 {
		t.Errorf("amount cells = %v %v", row[3], row[4])
	}
}
