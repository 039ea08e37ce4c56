package rates

import (
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/shopspring/decimal"
)

// BaseRateEntityTurnover is the aggregated turnover below which a company is a
// base rate entity taxed at the small corporate rate.
var BaseRateEntityTurnover = decimal.NewFromInt(50_000_000)

// Basis explains how a corporate rate was chosen.
type Basis string

const (
	BasisEntityOverride Basis = "entity_override"
	BasisBaseRateEntity Basis = "base_rate_entity"
	BasisStandard       Basis = "standard_rate"
	BasisAssumedSmall   Basis = "assumed_base_rate_entity"
)

// CorporateRate resolves the applicable corporate tax rate for an entity.
//
// An explicit rate on the entity wins. Companies, and entities of unknown type,
// use the small rate below the base rate entity turnover threshold and the
// standard rate at or above it. Other entity types use the standard rate as a
// proxy. Without any entity context, or without a turnover figure, the small
// rate is assumed, which gives the lower estimate for both offsets and future
// tax values.
func CorporateRate(entity *models.EntityContext, r Rates) (decimal.Decimal, Basis) {
	if entity == nil {
		return r.CorporateRateSmall, BasisAssumedSmall
	}
	if entity.CorporateRate.IsPositive() {
		return entity.CorporateRate, BasisEntityOverride
	}

	switch entity.Type() {
	case models.EntityCompany, models.EntityUnknown:
		turnover, known := entity.Turnover()
		if !known {
			return r.CorporateRateSmall, BasisAssumedSmall
		}
		if turnover.LessThan(BaseRateEntityTurnover) {
			return r.CorporateRateSmall, BasisBaseRateEntity
		}
		return r.CorporateRateStandard, BasisStandard
	default:
		return r.CorporateRateStandard, BasisStandard
	}
}
