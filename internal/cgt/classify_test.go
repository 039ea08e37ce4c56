package cgt

import (
	"testing"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsDisposal(t *testing.T) {
	tests := []struct {
		category    models.Category
		description string
		want        bool
	}{
		{models.CategoryAssetDisposal, "", true},
		{models.CategoryCapitalGain, "", true},
		{"CGT event", "", true},
		{models.CategoryOperating, "Sold delivery van", true},
		{models.CategoryOperating, "Sale of shares", true},
		{models.CategoryRevenue, "Product sales", false},
		{models.CategoryOperating, "Office rent", false},
	}

	for _, tt := range tests {
		got := IsDisposal(models.ClassifiedTransaction{Category: tt.category, Description: tt.description})
		assert.Equal(t, tt.want, got, "%s / %s", tt.category, tt.description)
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, Collectable, Categorize("Sale of PAINTING by local artist"))
	assert.Equal(t, Collectable, Categorize("Sold wine collection"))
	assert.Equal(t, PersonalUse, Categorize("Sold family caravan"))
	// Collectable keywords are checked first.
	assert.Equal(t, Collectable, Categorize("Sold antique furniture"))
	assert.Equal(t, Other, Categorize("Sale of shares"))
}

func TestHoldingMonths(t *testing.T) {
	assert.Equal(t, 12, HoldingMonths(date(2023, time.January, 1), date(2024, time.January, 1)))
	assert.Equal(t, 11, HoldingMonths(date(2023, time.January, 31), date(2024, time.January, 30)))
	assert.Equal(t, 0, HoldingMonths(time.Time{}, date(2024, time.January, 1)))
	assert.Equal(t, 0, HoldingMonths(date(2024, time.June, 1), date(2024, time.January, 1)))
}

func TestDiscountEligibility(t *testing.T) {
	_, ok := DiscountEligibility(models.EntityTrust, 12, true).(models.Eligible)
	assert.True(t, ok)

	ex, ok := DiscountEligibility(models.EntityIndividual, 11, true).(models.Excluded)
	assert.True(t, ok)
	assert.Equal(t, ReasonHoldingPeriod, ex.Reasons[0].Code)

	ex, ok = DiscountEligibility(models.EntityIndividual, 0, false).(models.Excluded)
	assert.True(t, ok)
	assert.Equal(t, ReasonMissingDates, ex.Reasons[0].Code)

	_, ok = DiscountEligibility(models.EntityUnknown, 24, true).(models.Unknown)
	assert.True(t, ok)
}

func TestCheckNetAssets_CliffEdge(t *testing.T) {
	tests := []struct {
		name      string
		own       int64
		connected int64
		met       bool
		cliffEdge bool
	}{
		{"comfortably below", 3_000_000, 1_000_000, true, false},
		{"within 10% of threshold", 5_000_000, 500_000, true, true},
		{"exactly at threshold", 6_000_000, 0, true, true},
		{"over threshold", 6_000_000, 500_000, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckNetAssets(decimal.NewFromInt(tt.own), decimal.NewFromInt(tt.connected))
			assert.Equal(t, tt.met, got.Met)
			assert.Equal(t, tt.cliffEdge, got.CliffEdgeWarning)
		})
	}
}

func TestNet_CollectableExcessNeverReducesOtherGains(t *testing.T) {
	events := []Event{
		{AssetCategory: Collectable, Gain: dec(10_000)},
		{AssetCategory: Collectable, Gain: dec(-80_000)},
		{AssetCategory: Other, Gain: dec(50_000), DiscountEligible: true},
		{AssetCategory: PersonalUse, Gain: dec(-5_000)},
	}

	n := Net(events, decimal.Zero, decimal.RequireFromString("0.5"))
	assert.True(t, n.CollectableLossesApplied.Equal(dec(10_000)))
	assert.True(t, n.CollectableLossesCarriedForward.Equal(dec(70_000)))
	assert.True(t, n.PersonalUseLossesDisregarded.Equal(dec(5_000)))
	assert.True(t, n.DiscountApplied.Equal(dec(25_000)))
	assert.True(t, n.NetCapitalGain.Equal(dec(25_000)))
}
