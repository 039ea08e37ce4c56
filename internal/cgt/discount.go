package cgt

import (
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/shopspring/decimal"
)

// MinDiscountMonths is the minimum holding period for the CGT discount.
const MinDiscountMonths = 12

// Reason codes for discount ineligibility.
const (
	ReasonHoldingPeriod  = "holding_period_under_12_months"
	ReasonMissingDates   = "acquisition_date_missing"
	ReasonEntityExcluded = "entity_not_eligible"
)

var (
	half  = decimal.RequireFromString("0.5")
	third = decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
)

// DiscountFactor is the share of an eligible gain removed by the discount.
func DiscountFactor(t models.EntityType) decimal.Decimal {
	switch t {
	case models.EntityIndividual, models.EntityTrust:
		return half
	case models.EntitySuperFund:
		return third
	default:
		return decimal.Zero
	}
}

// DiscountEligibility tests one event for the CGT discount.
func DiscountEligibility(t models.EntityType, months int, hasDates bool) models.Eligibility {
	if t == models.EntityUnknown {
		return models.Unknown{
			RiskLevel:  models.RiskMedium,
			Confidence: 50,
			Reason:     "entity type unknown; discount eligibility depends on whether the taxpayer is an individual, trust or super fund",
		}
	}

	var reasons []models.Reason
	if DiscountFactor(t).IsZero() {
		reasons = append(reasons, models.Reason{Code: ReasonEntityExcluded, Message: string(t) + " entities are not entitled to the CGT discount"})
	}
	if !hasDates {
		reasons = append(reasons, models.Reason{Code: ReasonMissingDates, Message: "acquisition or disposal date missing; holding period treated as zero"})
	} else if months < MinDiscountMonths {
		reasons = append(reasons, models.Reason{Code: ReasonHoldingPeriod, Message: "asset held for less than 12 months"})
	}
	if len(reasons) > 0 {
		return models.Excluded{Reasons: reasons}
	}
	return models.Eligible{}
}
