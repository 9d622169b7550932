// Package store persists the compensation network: accounts, ranks,
// packs, purchases, the bonus ledger and the volume event journal.
//
// All read-modify-write sequences over account counters go through
// ApplyBatch, which locks the touched rows in deterministic order and
// commits counter deltas together with the ledger entries and volume
// events produced by the same pipeline step. A crash mid-propagation can
// therefore never leave some ancestors updated and others not.
package store

import (
	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

// LastPurchase is an optional pointer update carried by a delta.
type LastPurchase struct {
	Tier   int
	Amount decimal.Decimal
}

// AccountDelta holds additive counter changes for one account. Zero
// fields are no-ops, so a delta only names what one pipeline step
// actually touches. SetRankID and SetLastPurchase are absolute sets.
type AccountDelta struct {
	Address string

	TeamAVolume       decimal.Decimal
	TeamBVolume       decimal.Decimal
	TeamAMatchedDelta decimal.Decimal
	TeamBMatchedDelta decimal.Decimal
	RankVolumeA       decimal.Decimal
	RankVolumeB       decimal.Decimal

	TeamACount int
	TeamBCount int

	BusinessVolume   decimal.Decimal
	IndividualIncome decimal.Decimal

	DirectSponsorBonusEarned  decimal.Decimal
	TeamMatchingBonusEarned   decimal.Decimal
	DirectMatchingBonusEarned decimal.Decimal
	RankBonusEarned           decimal.Decimal
	WithdrawableBalance       decimal.Decimal

	DirectReferralCount int

	SetRankID       int // 0 leaves the rank unchanged
	SetLastPurchase *LastPurchase
}

// Batch couples the account deltas of one pipeline step with the ledger
// entries and volume events that must commit with them.
type Batch struct {
	Deltas  []AccountDelta
	Entries []domain.BonusLedgerEntry
	Events  []domain.VolumeEvent
}

// EntryUpdate is the reconciliation job's mutation of one held ledger
// entry. Amount and CappedAmount are absolute values.
type EntryUpdate struct {
	Amount       decimal.Decimal
	CappedAmount decimal.Decimal
	Releasable   bool
	OnHold       bool
}
