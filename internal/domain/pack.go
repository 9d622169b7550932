package domain

import "github.com/shopspring/decimal"

// Pack is a purchasable tier. Tier numbers are ordered; a buyer may not
// purchase a lower tier than their last purchase.
type Pack struct {
	Tier  int
	Name  string
	Price decimal.Decimal
}

// DefaultPacks is the seeded pack catalog.
func DefaultPacks() []Pack {
	return []Pack{
		{Tier: 1, Name: "Entry", Price: decimal.NewFromInt(50)},
		{Tier: 2, Name: "Basic", Price: decimal.NewFromInt(200)},
		{Tier: 3, Name: "Advanced", Price: decimal.NewFromInt(500)},
		{Tier: 4, Name: "Pro", Price: decimal.NewFromInt(1000)},
		{Tier: 5, Name: "Elite", Price: decimal.NewFromInt(2500)},
		{Tier: 6, Name: "Apex", Price: decimal.NewFromInt(5000)},
	}
}
