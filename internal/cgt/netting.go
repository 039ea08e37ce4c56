package cgt

import (
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/shopspring/decimal"
)

// Netting is the outcome of applying capital losses to capital gains.
type Netting struct {
	TotalCapitalGains               decimal.Decimal `json:"totalCapitalGains"`
	TotalCapitalLosses              decimal.Decimal `json:"totalCapitalLosses"`
	CollectableGains                decimal.Decimal `json:"collectableGains"`
	CollectableLosses               decimal.Decimal `json:"collectableLosses"`
	CollectableLossesApplied        decimal.Decimal `json:"collectableLossesApplied"`
	CollectableLossesCarriedForward decimal.Decimal `json:"collectableLossesCarriedForward"`
	PersonalUseLossesDisregarded    decimal.Decimal `json:"personalUseLossesDisregarded"`
	OtherLossesApplied              decimal.Decimal `json:"otherLossesApplied"`
	PriorLossesApplied              decimal.Decimal `json:"priorLossesApplied"`
	CapitalLossesCarriedForward     decimal.Decimal `json:"capitalLossesCarriedForward"`
	DiscountApplied                 decimal.Decimal `json:"discountApplied"`
	NetCapitalGain                  decimal.Decimal `json:"netCapitalGain"`
}

// pool splits gains into the part the discount can apply to and the part it cannot.
type pool struct {
	discountable    decimal.Decimal
	nonDiscountable decimal.Decimal
}

func (p pool) total() decimal.Decimal {
	return p.discountable.Add(p.nonDiscountable)
}

// absorb applies up to loss against the pool, non-discountable gains first,
// and returns how much was used.
func (p *pool) absorb(loss decimal.Decimal) decimal.Decimal {
	fromND := money.Min(loss, p.nonDiscountable)
	p.nonDiscountable = p.nonDiscountable.Sub(fromND)
	fromD := money.Min(loss.Sub(fromND), p.discountable)
	p.discountable = p.discountable.Sub(fromD)
	return fromND.Add(fromD)
}

func (p *pool) add(other pool) {
	p.discountable = p.discountable.Add(other.discountable)
	p.nonDiscountable = p.nonDiscountable.Add(other.nonDiscountable)
}

// Net applies the loss quarantining and ordering rules:
//
//  1. collectable losses reduce collectable gains only; any excess is carried forward
//  2. personal-use losses are disregarded
//  3. other losses, then prior-year losses, reduce the remaining gains
//  4. the discount applies to what is left of the discountable gains
func Net(events []Event, priorLosses, discountFactor decimal.Decimal) Netting {
	var collectable, rest pool
	var collectableLosses, personalUseLosses, otherLosses decimal.Decimal
	n := Netting{}

	for _, e := range events {
		if e.Gain.IsPositive() {
			target := &rest
			if e.AssetCategory == Collectable {
				target = &collectable
				n.CollectableGains = n.CollectableGains.Add(e.Gain)
			}
			if e.DiscountEligible {
				target.discountable = target.discountable.Add(e.Gain)
			} else {
				target.nonDiscountable = target.nonDiscountable.Add(e.Gain)
			}
			n.TotalCapitalGains = n.TotalCapitalGains.Add(e.Gain)
			continue
		}

		loss := e.Gain.Abs()
		switch e.AssetCategory {
		case Collectable:
			collectableLosses = collectableLosses.Add(loss)
		case PersonalUse:
			personalUseLosses = personalUseLosses.Add(loss)
		default:
			otherLosses = otherLosses.Add(loss)
		}
	}

	n.CollectableLosses = collectableLosses
	n.CollectableLossesApplied = collectable.absorb(collectableLosses)
	n.CollectableLossesCarriedForward = collectableLosses.Sub(n.CollectableLossesApplied)
	n.PersonalUseLossesDisregarded = personalUseLosses
	n.TotalCapitalLosses = collectableLosses.Add(otherLosses)

	rest.add(collectable)
	n.OtherLossesApplied = rest.absorb(otherLosses)
	prior := money.NonNegative(priorLosses)
	n.PriorLossesApplied = rest.absorb(prior)
	n.CapitalLossesCarriedForward = otherLosses.Sub(n.OtherLossesApplied).Add(prior.Sub(n.PriorLossesApplied))

	n.DiscountApplied = money.Round(rest.discountable.Mul(discountFactor))
	n.NetCapitalGain = rest.total().Sub(n.DiscountApplied)
	return n
}
