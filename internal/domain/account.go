package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg identifies one of the two branches of the binary placement tree.
type Leg int16

const (
	LegA Leg = 0
	LegB Leg = 1
)

func (l Leg) String() string {
	if l == LegA {
		return "A"
	}
	return "B"
}

// TreeKind selects which of the two parallel ancestor structures to read.
type TreeKind string

const (
	PlacementTree TreeKind = "placement"
	SponsorTree   TreeKind = "sponsor"
)

// Account is a network participant. Structural edges and ancestor
// snapshots are fixed at enrollment and never retargeted; the counters
// are mutated only by the compensation engine.
type Account struct {
	Address string

	// Placement tree: one parent, two child legs. PlacementAncestors is
	// ordered root-first and equals the parent's list plus the parent.
	Parent             string
	PlacementNode      Leg
	PlacementAncestors []string
	TreeDepth          int

	// Sponsor tree: who referred whom, root-first snapshot as above.
	Sponsor          string
	SponsorAncestors []string

	// Binary matching volumes. MatchedDelta counts volume already consumed
	// by past matches and may never exceed the leg volume.
	TeamAVolume       decimal.Decimal
	TeamBVolume       decimal.Decimal
	TeamAMatchedDelta decimal.Decimal
	TeamBMatchedDelta decimal.Decimal

	// Rank qualification buckets, debited by the cost of a promotion.
	RankVolumeA decimal.Decimal
	RankVolumeB decimal.Decimal

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
	RankID              int

	LastPurchaseTier   int
	LastPurchaseAmount decimal.Decimal

	CreatedAt time.Time
}

// IsRoot reports whether the account is the top of the sponsor tree.
func (a *Account) IsRoot() bool {
	return a.Sponsor == ""
}

// UnmatchedA returns leg A volume not yet consumed by a binary match.
func (a *Account) UnmatchedA() decimal.Decimal {
	return a.TeamAVolume.Sub(a.TeamAMatchedDelta)
}

// UnmatchedB returns leg B volume not yet consumed by a binary match.
func (a *Account) UnmatchedB() decimal.Decimal {
	return a.TeamBVolume.Sub(a.TeamBMatchedDelta)
}

// TotalEarnings sums every bonus counter, mirroring the figure shown on
// the account details endpoint.
func (a *Account) TotalEarnings() decimal.Decimal {
	return a.DirectSponsorBonusEarned.
		Add(a.TeamMatchingBonusEarned).
		Add(a.DirectMatchingBonusEarned).
		Add(a.RankBonusEarned)
}

// CheckVolumeInvariant verifies that neither matched delta exceeds its
// leg volume. A violation means the engine produced a match out of thin
// air and the batch that caused it must be rejected.
func (a *Account) CheckVolumeInvariant() error {
	if a.TeamAMatchedDelta.GreaterThan(a.TeamAVolume) || a.TeamBMatchedDelta.GreaterThan(a.TeamBVolume) {
		return ErrInvariantViolation
	}
	return nil
}
