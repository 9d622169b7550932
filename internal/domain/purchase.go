package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStatus tracks the lifecycle of a pack purchase. Transitions are
// forward-only: initiated -> paid -> volume_applied -> direct_paid ->
// settled. The intermediate states record which pipeline steps already
// committed, so a distribution interrupted mid-pipeline resumes at the
// first incomplete step instead of re-applying volume or bonuses. Legacy
// rows are imported history and never re-enter the pipeline.
type PurchaseStatus string

const (
	PurchaseInitiated     PurchaseStatus = "initiated"
	PurchasePaid          PurchaseStatus = "paid"
	PurchaseVolumeApplied PurchaseStatus = "volume_applied"
	PurchaseDirectPaid    PurchaseStatus = "direct_paid"
	PurchaseSettled       PurchaseStatus = "settled"
	PurchaseLegacy        PurchaseStatus = "legacy"
)

// InPipeline reports whether the purchase still has pipeline steps to
// run.
func (s PurchaseStatus) InPipeline() bool {
	return s == PurchasePaid || s == PurchaseVolumeApplied || s == PurchaseDirectPaid
}

// Purchase is an immutable record of one pack bought by one account.
// It triggers exactly one run of the distribution pipeline.
type Purchase struct {
	ID        int64
	Buyer     string
	Tier      int
	Price     decimal.Decimal
	Status    PurchaseStatus
	CreatedAt time.Time
}
