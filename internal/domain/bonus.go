package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BonusKind classifies a bonus ledger entry.
type BonusKind string

const (
	// BonusDirect is the immediate sponsor's percentage of a purchase.
	BonusDirect BonusKind = "direct"
	// BonusTeamMatch is the binary matching bonus on two-leg volume.
	BonusTeamMatch BonusKind = "team_match"
	// BonusTeamMatchOverride is the secondary credit computed on top of a
	// team match for ancestors in the buyer's sponsor chain.
	BonusTeamMatchOverride BonusKind = "team_match_override"
	// BonusRank is the one-time award for a rank promotion.
	BonusRank BonusKind = "rank"
)

// BonusLedgerEntry is an append-only record of one bonus event. Direct
// and rank bonuses are born releasable; team match and override bonuses
// are born held and only the reconciliation job flips them.
type BonusLedgerEntry struct {
	ID            int64
	Kind          BonusKind
	SourceAddress string // who generated the bonus (the buyer)
	Beneficiary   string
	PurchaseID    int64
	Amount        decimal.Decimal
	Percent       decimal.Decimal
	Releasable    bool
	OnHold        bool
	CappedAmount  decimal.Decimal
	CreatedAt     time.Time
}

// VolumeEvent journals one per-ancestor leg credit applied during volume
// propagation.
type VolumeEvent struct {
	ID         int64
	Ancestor   string
	Leg        Leg
	Amount     decimal.Decimal
	Buyer      string
	PurchaseID int64
	CreatedAt  time.Time
}
