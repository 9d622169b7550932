package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestUnmatchedVolumes(t *testing.T) {
	a := &Account{
		TeamAVolume:       decimal.NewFromInt(100),
		TeamBVolume:       decimal.NewFromInt(40),
		TeamAMatchedDelta: decimal.NewFromInt(30),
	}

	if got := a.UnmatchedA(); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("UnmatchedA = %s, want 70", got)
	}
	if got := a.UnmatchedB(); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("UnmatchedB = %s, want 40", got)
	}
}

func TestCheckVolumeInvariant(t *testing.T) {
	ok := &Account{
		TeamAVolume:       decimal.NewFromInt(100),
		TeamAMatchedDelta: decimal.NewFromInt(100),
	}
	if err := ok.CheckVolumeInvariant(); err != nil {
		t.Errorf("invariant check failed for delta == volume: %v", err)
	}

	bad := &Account{
		TeamBVolume:       decimal.NewFromInt(40),
		TeamBMatchedDelta: decimal.NewFromInt(41),
	}
	if err := bad.CheckVolumeInvariant(); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("invariant check = %v, want ErrInvariantViolation", err)
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(40), decimal.NewFromInt(7))
	if !got.Equal(decimal.NewFromFloat(2.8)) {
		t.Errorf("7%% of 40 = %s, want 2.8", got)
	}
}

func TestLegRatioSatisfied(t *testing.T) {
	tests := []struct {
		name  string
		a, b  int64
		ratio int
		want  bool
	}{
		{"balanced 1:1", 100, 100, 1, true},
		{"dominant A 1:1", 300, 100, 1, true},
		{"2:1 not reached", 150, 100, 2, false},
		{"2:1 reached by B", 100, 200, 2, true},
		{"empty B leg", 100, 0, 1, false},
		{"both empty", 0, 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LegRatioSatisfied(decimal.NewFromInt(tt.a), decimal.NewFromInt(tt.b), tt.ratio)
			if got != tt.want {
				t.Errorf("LegRatioSatisfied(%d, %d, %d) = %v, want %v", tt.a, tt.b, tt.ratio, got, tt.want)
			}
		})
	}
}

func TestDefaultRanksOrdered(t *testing.T) {
	ranks := DefaultRanks()
	for i := 1; i < len(ranks); i++ {
		if !ranks[i].MinimumVolume.GreaterThan(ranks[i-1].MinimumVolume) {
			t.Errorf("rank %d volume threshold %s not above rank %d's %s",
				ranks[i].ID, ranks[i].MinimumVolume, ranks[i-1].ID, ranks[i-1].MinimumVolume)
		}
		if ranks[i].ID != ranks[i-1].ID+1 {
			t.Errorf("rank IDs not sequential at index %d", i)
		}
	}
}

func TestTotalEarnings(t *testing.T) {
	a := &Account{
		DirectSponsorBonusEarned:  decimal.NewFromInt(20),
		TeamMatchingBonusEarned:   decimal.NewFromFloat(2.8),
		DirectMatchingBonusEarned: decimal.NewFromFloat(0.28),
		RankBonusEarned:           decimal.NewFromInt(50),
	}
	if got := a.TotalEarnings(); !got.Equal(decimal.NewFromFloat(73.08)) {
		t.Errorf("TotalEarnings = %s, want 73.08", got)
	}
}
