// Package cgt analyses capital gains tax events from classified transactions.
package cgt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/rocjay1/tax-analyzer/internal/summary"
	"github.com/shopspring/decimal"
)

// Event is one disposal and its derived CGT treatment.
type Event struct {
	TransactionID       string             `json:"transactionId"`
	FinancialYear       string             `json:"financialYear"`
	Description         string             `json:"description"`
	AssetCategory       AssetCategory      `json:"assetCategory"`
	AcquisitionDate     time.Time          `json:"acquisitionDate,omitzero"`
	DisposalDate        time.Time          `json:"disposalDate"`
	CapitalProceeds     decimal.Decimal    `json:"capitalProceeds"`
	CostBase            *decimal.Decimal   `json:"costBase,omitempty"`
	Gain                decimal.Decimal    `json:"gain"`
	HoldingPeriodMonths int                `json:"holdingPeriodMonths"`
	DiscountEligible    bool               `json:"discountEligible"`
	DiscountEligibility models.Eligibility `json:"discountEligibility"`
	DiscountedGain      decimal.Decimal    `json:"discountedGain"`
}

// YearGains totals gains and losses for one financial year.
type YearGains struct {
	FinancialYear  string          `json:"financialYear"`
	CapitalGains   decimal.Decimal `json:"capitalGains"`
	CapitalLosses  decimal.Decimal `json:"capitalLosses"`
	DisposalsCount int             `json:"disposalsCount"`
}

// Summary is the result of a capital gains analysis.
type Summary struct {
	summary.Metadata
	Netting
	Events                     []Event         `json:"events"`
	ByYear                     []YearGains     `json:"byYear"`
	DiscountFactor             decimal.Decimal `json:"discountFactor"`
	Concessions                *Concessions    `json:"concessions,omitempty"`
	TaxableCapitalGain         decimal.Decimal `json:"taxableCapitalGain"`
	EstimatedTax               decimal.Decimal `json:"estimatedTax"`
	TaxRate                    decimal.Decimal `json:"taxRate"`
	RateBasis                  rates.Basis     `json:"rateBasis"`
	ProfessionalReviewRequired bool            `json:"professionalReviewRequired"`
}

// RequiresReview reports whether the position should go to a tax professional.
func (s *Summary) RequiresReview() bool {
	return s.ProfessionalReviewRequired
}

// Analyzer runs the capital gains analysis.
type Analyzer struct {
	rates       rates.Reader
	materiality decimal.Decimal
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMateriality sets the total gain above which professional review is required.
func WithMateriality(threshold decimal.Decimal) Option {
	return func(a *Analyzer) { a.materiality = threshold }
}

// NewAnalyzer creates an Analyzer reading rates from r.
func NewAnalyzer(r rates.Reader, opts ...Option) *Analyzer {
	a := &Analyzer{rates: r, materiality: decimal.NewFromInt(50_000)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze finds disposals, nets gains and losses under the quarantining rules,
// applies the discount, and evaluates small business concessions.
func (a *Analyzer) Analyze(ctx context.Context, txs []models.ClassifiedTransaction, entity *models.EntityContext) (*Summary, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	if err := models.CheckTenant(txs); err != nil {
		return nil, err
	}

	var disposals []models.ClassifiedTransaction
	for _, t := range txs {
		if IsDisposal(t) {
			disposals = append(disposals, t)
		}
	}
	sort.SliceStable(disposals, func(i, j int) bool { return disposals[i].Less(disposals[j]) })

	entityType := entity.Type()
	factor := DiscountFactor(entityType)

	events := make([]Event, 0, len(disposals))
	byYear := summary.NewYearTotals()
	lossesByYear := summary.NewYearTotals()
	counts := make(map[string]int)
	var lastDisposal time.Time
	for _, t := range disposals {
		e, err := newEvent(t, entityType, factor)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
		if e.Gain.IsPositive() {
			byYear.Add(e.FinancialYear, e.Gain)
		} else {
			byYear.Add(e.FinancialYear, decimal.Zero)
			if e.AssetCategory != PersonalUse {
				lossesByYear.Add(e.FinancialYear, e.Gain.Abs())
			}
		}
		counts[e.FinancialYear]++
		if e.DisposalDate.After(lastDisposal) {
			lastDisposal = e.DisposalDate
		}
	}

	var priorLosses decimal.Decimal
	if entity != nil {
		priorLosses = entity.PriorCapitalLosses
	}

	r := a.rates.GetCurrentRates(ctx)
	taxRate, basis := rates.CorporateRate(entity, r)

	tenantID := ""
	if len(txs) > 0 {
		tenantID = txs[0].TenantID
	}
	b := summary.NewBuilder(tenantID)
	b.Cite("s 102-5 ITAA 1997", "net capital gain")
	b.Cite("Division 115 ITAA 1997", "discount capital gains")
	b.Cite("s 108-10 ITAA 1997", "collectables")
	b.Cite("s 108-20 ITAA 1997", "personal use assets")

	s := &Summary{
		Netting:        Net(events, priorLosses, factor),
		Events:         events,
		ByYear:         make([]YearGains, 0),
		DiscountFactor: factor,
		TaxRate:        taxRate,
		RateBasis:      basis,
	}
	for _, label := range byYear.Labels() {
		s.ByYear = append(s.ByYear, YearGains{
			FinancialYear:  label,
			CapitalGains:   byYear.Get(label),
			CapitalLosses:  lossesByYear.Get(label),
			DisposalsCount: counts[label],
		})
	}

	s.TaxableCapitalGain = s.NetCapitalGain
	if s.NetCapitalGain.IsPositive() {
		c := EvaluateConcessions(s.NetCapitalGain, entity, lastDisposal)
		s.Concessions = &c
		s.TaxableCapitalGain = c.GainAfterConcessions
		b.Cite("Division 152 ITAA 1997", "small business CGT concessions")
		b.Cite("s 152-15 ITAA 1997", "maximum net asset value test")
		b.Cite("Subdivision 152-B ITAA 1997", "15-year exemption")
		b.Cite("Subdivision 152-C ITAA 1997", "50% active asset reduction")
		b.Cite("Subdivision 152-D ITAA 1997", "retirement exemption")
		b.Cite("Subdivision 152-E ITAA 1997", "replacement asset rollover")
		adviseConcessions(b, c)
	}
	s.EstimatedTax = money.Round(money.NonNegative(s.TaxableCapitalGain).Mul(taxRate))

	s.ProfessionalReviewRequired = s.TotalCapitalGains.GreaterThan(a.materiality) ||
		(s.Concessions != nil && s.Concessions.ReviewRequired)
	for _, e := range events {
		if _, ok := e.DiscountEligibility.(models.Unknown); ok {
			s.ProfessionalReviewRequired = true
			b.Recommend("Confirm the entity type; CGT discount eligibility could not be determined")
			break
		}
	}
	advise(b, s, entity)
	s.Metadata = b.Build(r)

	slog.Debug("cgt analysis complete",
		"tenant_id", tenantID,
		"disposals", len(events),
		"review_required", s.ProfessionalReviewRequired,
	)
	return s, nil
}

func newEvent(t models.ClassifiedTransaction, entityType models.EntityType, factor decimal.Decimal) (Event, error) {
	y, err := fiscal.Of(t)
	if err != nil {
		return Event{}, err
	}

	gain := t.Amount
	if t.CostBase != nil {
		gain = t.Amount.Sub(*t.CostBase)
	}
	gain = money.Round(gain)

	hasDates := !t.AcquisitionDate.IsZero() && !t.Date.IsZero()
	months := HoldingMonths(t.AcquisitionDate, t.Date)
	eligibility := DiscountEligibility(entityType, months, hasDates)
	_, eligible := eligibility.(models.Eligible)

	discounted := gain
	if eligible && gain.IsPositive() {
		discounted = gain.Sub(money.Round(gain.Mul(factor)))
	}

	return Event{
		TransactionID:       t.TransactionID,
		FinancialYear:       y.Label(),
		Description:         t.Description,
		AssetCategory:       Categorize(t.Description),
		AcquisitionDate:     t.AcquisitionDate,
		DisposalDate:        t.Date,
		CapitalProceeds:     t.Amount,
		CostBase:            t.CostBase,
		Gain:                gain,
		HoldingPeriodMonths: months,
		DiscountEligible:    eligible,
		DiscountEligibility: eligibility,
		DiscountedGain:      discounted,
	}, nil
}

func adviseConcessions(b *summary.Builder, c Concessions) {
	if c.NetAssetTest.CliffEdgeWarning {
		b.Warn(fmt.Sprintf("Aggregated net assets of $%s are within 10%% of the $%s limit; a small increase would remove access to the concessions",
			c.NetAssetTest.AggregatedAssets.StringFixed(2), c.NetAssetTest.Threshold.StringFixed(0)))
	}
	if c.ReviewRequired {
		b.Warn("Aggregated turnover or net asset value was not supplied; small business CGT concessions were not applied")
	}
	if !c.BasicConditionsMet {
		b.Recommend("Small business CGT concessions are unavailable unless the turnover or net asset test is met; supply entity details to evaluate them")
		return
	}
	if c.FifteenYearExemption.Eligible {
		b.Recommend("The 15-year exemption may disregard the entire gain; confirm continuous ownership and retirement or incapacity conditions")
	}
	if c.RetirementExemption.Eligible {
		b.Recommend("Consider the retirement exemption; contributions may be required if under 55")
	}
	if c.Rollover.Eligible {
		b.Recommend("A rollover requires a replacement active asset by " + c.Rollover.ReplacementDeadline.Format("2 January 2006"))
	}
}

func advise(b *summary.Builder, s *Summary, entity *models.EntityContext) {
	if entity == nil {
		b.Warn("No entity context supplied; discount eligibility and concessions could not be fully assessed")
	}
	if s.CollectableLossesCarriedForward.IsPositive() {
		b.Recommend("Carry forward unused collectable losses; they can only offset future collectable gains")
	}
	if s.PersonalUseLossesDisregarded.IsPositive() {
		b.Warn("Losses on personal use assets are disregarded and cannot offset any gain")
	}
	if s.CapitalLossesCarriedForward.IsPositive() {
		b.Recommend("Record unused capital losses for carry forward to later income years")
	}
	if s.ProfessionalReviewRequired {
		b.Recommend("Have a registered tax agent review the capital gains position before lodgment")
	}
}
