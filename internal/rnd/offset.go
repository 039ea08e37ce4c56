package rnd

import (
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/shopspring/decimal"
)

var (
	// RefundableTurnoverThreshold is the aggregated turnover below which the offset is refundable.
	RefundableTurnoverThreshold = decimal.NewFromInt(20_000_000)
	// RefundableCap is the annual limit on the refundable portion of the offset.
	RefundableCap = decimal.NewFromInt(4_000_000)
	// MinimumExpenditure is the annual notional deduction floor for claiming the offset.
	MinimumExpenditure = decimal.NewFromInt(20_000)

	refundablePremium    = money.Percent(18.5)
	nonRefundablePremium = money.Percent(8.5)
)

// OffsetRate is the resolved offset rate for an entity.
type OffsetRate struct {
	Rate          decimal.Decimal `json:"rate"`
	CorporateRate decimal.Decimal `json:"corporateRate"`
	RateBasis     rates.Basis     `json:"rateBasis"`
	IsRefundable  bool            `json:"isRefundable"`
}

// ResolveOffsetRate picks the offset rate for an entity: corporate rate plus
// 18.5% below $20M turnover (refundable), otherwise plus 8.5%. A missing
// entity or turnover is treated as a small, refundable claimant.
func ResolveOffsetRate(entity *models.EntityContext, r rates.Rates) OffsetRate {
	corporate, basis := rates.CorporateRate(entity, r)
	turnover, known := entity.Turnover()
	refundable := !known || turnover.LessThan(RefundableTurnoverThreshold)

	out := OffsetRate{CorporateRate: corporate, RateBasis: basis, IsRefundable: refundable}
	switch {
	case refundable && (basis == rates.BasisBaseRateEntity || basis == rates.BasisAssumedSmall):
		// The published headline rate already combines the base rate and premium.
		out.Rate = r.RnDOffsetRate
	case refundable:
		out.Rate = corporate.Add(refundablePremium)
	default:
		out.Rate = corporate.Add(nonRefundablePremium)
	}
	return out
}

// Split divides an offset into its refundable and non-refundable portions.
type Split struct {
	Raw           decimal.Decimal `json:"rawOffset"`
	Refundable    decimal.Decimal `json:"refundableOffset"`
	NonRefundable decimal.Decimal `json:"nonRefundableOffset"`
	CapApplied    bool            `json:"capApplied"`
}

// SplitOffset applies the refundable cap. Refundable amounts above the cap
// become non-refundable.
func SplitOffset(raw decimal.Decimal, refundable bool) Split {
	raw = money.Round(money.NonNegative(raw))
	if !refundable {
		return Split{Raw: raw, Refundable: decimal.Zero, NonRefundable: raw}
	}
	if raw.GreaterThan(RefundableCap) {
		return Split{
			Raw:           raw,
			Refundable:    RefundableCap,
			NonRefundable: raw.Sub(RefundableCap),
			CapApplied:    true,
		}
	}
	return Split{Raw: raw, Refundable: raw, NonRefundable: decimal.Zero}
}
