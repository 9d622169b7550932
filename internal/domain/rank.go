package domain

import "github.com/shopspring/decimal"

// Rank is one level of the compensation plan. Ranks form a strict order
// by MinimumVolume; an account's rank never decreases automatically.
type Rank struct {
	ID   int
	Name string

	// Qualification thresholds.
	MinimumVolume           decimal.Decimal
	MinimumDirectReferrals  int
	LegRatio                int // 1 for 1:1, 2 for 2:1
	StarCount               int // 0 means no star requirement
	StarRankID              int // rank level the counted descendants must have

	// Payout parameters.
	DirectBonusPercent decimal.Decimal
	RankBonus          decimal.Decimal
}

// HasStarRequirement reports whether promotion needs qualified
// descendants ("stars") in the downline.
func (r Rank) HasStarRequirement() bool {
	return r.StarCount > 0
}

// DefaultRanks is the seeded compensation plan.
func DefaultRanks() []Rank {
	return []Rank{
		{ID: 1, Name: "Starter", MinimumVolume: decimal.Zero, MinimumDirectReferrals: 0, LegRatio: 1,
			DirectBonusPercent: decimal.NewFromInt(5), RankBonus: decimal.Zero},
		{ID: 2, Name: "Builder", MinimumVolume: decimal.NewFromInt(1000), MinimumDirectReferrals: 2, LegRatio: 1,
			DirectBonusPercent: decimal.NewFromInt(6), RankBonus: decimal.NewFromInt(50)},
		{ID: 3, Name: "Bronze", MinimumVolume: decimal.NewFromInt(5000), MinimumDirectReferrals: 4, LegRatio: 1,
			StarCount: 2, StarRankID: 2,
			DirectBonusPercent: decimal.NewFromInt(7), RankBonus: decimal.NewFromInt(250)},
		{ID: 4, Name: "Silver", MinimumVolume: decimal.NewFromInt(15000), MinimumDirectReferrals: 6, LegRatio: 2,
			StarCount: 2, StarRankID: 3,
			DirectBonusPercent: decimal.NewFromInt(8), RankBonus: decimal.NewFromInt(750)},
		{ID: 5, Name: "Gold", MinimumVolume: decimal.NewFromInt(50000), MinimumDirectReferrals: 8, LegRatio: 2,
			StarCount: 3, StarRankID: 4,
			DirectBonusPercent: decimal.NewFromInt(9), RankBonus: decimal.NewFromInt(2500)},
		{ID: 6, Name: "Diamond", MinimumVolume: decimal.NewFromInt(150000), MinimumDirectReferrals: 10, LegRatio: 2,
			StarCount: 3, StarRankID: 5,
			DirectBonusPercent: decimal.NewFromInt(10), RankBonus: decimal.NewFromInt(7500)},
	}
}
