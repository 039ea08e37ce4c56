package summary

import (
	"testing"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuilder_DeduplicatesInOrder(t *testing.T) {
	b := NewBuilder("tenant-1")
	b.Cite("s 355-100 ITAA 1997", "offset rates")
	b.Cite("s 355-25 ITAA 1997", "core R&D activities")
	b.Cite("s 355-100 ITAA 1997", "offset rates")
	b.Recommend("Register activities")
	b.Recommend("Keep records")
	b.Recommend("Register activities")
	b.Recommend("")
	b.Warn("Deadline passed")
	b.Warn("Deadline passed")

	r := rates.Defaults()
	r.VerifiedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := b.Build(r)

	assert.Equal(t, "tenant-1", m.TenantID)
	assert.Len(t, m.LegislativeReferences, 2)
	assert.Equal(t, "s 355-100 ITAA 1997", m.LegislativeReferences[0].Citation)
	assert.Equal(t, []string{"Register activities", "Keep records"}, m.Recommendations)
	assert.Equal(t, []string{"Deadline passed"}, m.Warnings)
	assert.Equal(t, rates.SourceFallback, m.RateVerification.Sources[rates.KeyRnDOffset])
	assert.Equal(t, r.VerifiedAt, m.RateVerification.VerifiedAt)
}

func TestBuilder_EmptyListsAreNotNil(t *testing.T) {
	m := NewBuilder("t").Build(rates.Defaults())
	assert.NotNil(t, m.LegislativeReferences)
	assert.NotNil(t, m.Recommendations)
	assert.NotNil(t, m.Warnings)
}

func TestYearTotals(t *testing.T) {
	y := NewYearTotals()
	y.Add("FY2024-25", decimal.NewFromInt(10))
	y.Add("FY2022-23", decimal.NewFromInt(5))
	y.Add("FY2024-25", decimal.NewFromInt(15))

	assert.Equal(t, []string{"FY2022-23", "FY2024-25"}, y.Labels())
	assert.True(t, y.Get("FY2024-25").Equal(decimal.NewFromInt(25)))
	assert.True(t, y.Get("FY2030-31").IsZero())
}

func TestOverallRisk(t *testing.T) {
	low, med, high := models.RiskLow, models.RiskMedium, models.RiskHigh

	assert.Equal(t, low, OverallRisk(nil))
	assert.Equal(t, high, OverallRisk([]models.RiskLevel{low, low, high}))
	// 1 of 3 is 33% > 30%
	assert.Equal(t, med, OverallRisk([]models.RiskLevel{low, low, med}))
	// 3 of 10 is exactly 30%, not more
	assert.Equal(t, low, OverallRisk([]models.RiskLevel{med, med, med, low, low, low, low, low, low, low}))
	assert.Equal(t, low, OverallRisk([]models.RiskLevel{low, low, low, low}))
}
