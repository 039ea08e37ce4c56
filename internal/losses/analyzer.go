// Package losses replays yearly profit and loss to track carried-forward tax losses.
package losses

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/rocjay1/tax-analyzer/internal/summary"
	"github.com/shopspring/decimal"
)

// Summary is the result of a loss carry-forward analysis.
type Summary struct {
	summary.Metadata
	Positions                   []LossPosition   `json:"positions"`
	TotalLossesIncurred         decimal.Decimal  `json:"totalLossesIncurred"`
	TotalUtilized               decimal.Decimal  `json:"totalUtilized"`
	ClosingBalance              decimal.Decimal  `json:"closingBalance"`
	FutureTaxValue              decimal.Decimal  `json:"futureTaxValue"`
	CorporateRate               decimal.Decimal  `json:"corporateRate"`
	RateBasis                   rates.Basis      `json:"rateBasis"`
	CapitalLossesCarriedForward decimal.Decimal  `json:"capitalLossesCarriedForward"`
	SkippedTransactions         int              `json:"skippedTransactions"`
	OverallRisk                 models.RiskLevel `json:"overallRisk"`
	ProfessionalReviewRequired  bool             `json:"professionalReviewRequired"`
}

// RequiresReview reports whether the position should go to a tax professional.
func (s *Summary) RequiresReview() bool {
	return s.ProfessionalReviewRequired
}

// Analyzer runs the loss carry-forward analysis.
type Analyzer struct {
	rates rates.Reader
	now   func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock sets the time source used for amendment windows.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an Analyzer reading rates from r.
func NewAnalyzer(r rates.Reader, opts ...Option) *Analyzer {
	a := &Analyzer{rates: r, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reconstructs yearly net income and replays it oldest year first,
// consuming the earliest losses before later ones.
func (a *Analyzer) Analyze(ctx context.Context, txs []models.ClassifiedTransaction, entity *models.EntityContext) (*Summary, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	if err := models.CheckTenant(txs); err != nil {
		return nil, err
	}

	sorted := append([]models.ClassifiedTransaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	income, err := ReconstructIncome(sorted)
	if err != nil {
		return nil, err
	}

	r := a.rates.GetCurrentRates(ctx)
	corporate, basis := rates.CorporateRate(entity, r)

	rules := Rules{
		EntityType:    entity.Type(),
		CorporateRate: corporate,
		Now:           a.now(),
	}
	var prior, priorCapital decimal.Decimal
	if entity != nil {
		rules.Continuity = entity.Continuity
		prior = entity.PriorRevenueLosses
		priorCapital = entity.PriorCapitalLosses
	}

	tenantID := ""
	if len(txs) > 0 {
		tenantID = txs[0].TenantID
	}
	b := summary.NewBuilder(tenantID)
	b.Cite("Division 36 ITAA 1997", "tax losses of earlier income years")
	b.Cite("Subdivision 165-A ITAA 1997", "continuity of ownership test")
	b.Cite("s 165-13 ITAA 1997", "business continuity test")
	b.Cite("s 170 ITAA 1936", "amendment of assessments")

	s := &Summary{
		Positions:                   rules.Replay(Seed(prior), income.Years),
		TotalLossesIncurred:         decimal.Zero,
		TotalUtilized:               decimal.Zero,
		ClosingBalance:              money.Round(prior),
		CorporateRate:               corporate,
		RateBasis:                   basis,
		CapitalLossesCarriedForward: money.Round(priorCapital),
		SkippedTransactions:         income.Skipped,
	}

	levels := make([]models.RiskLevel, 0, len(s.Positions))
	for _, p := range s.Positions {
		s.TotalLossesIncurred = s.TotalLossesIncurred.Add(p.CurrentYearLoss)
		s.TotalUtilized = s.TotalUtilized.Add(p.Utilized)
		s.ClosingBalance = p.ClosingBalance
		s.ProfessionalReviewRequired = s.ProfessionalReviewRequired || p.ProfessionalReviewRequired
		levels = append(levels, p.RiskLevel)
		b.Warn(p.AmendmentWarning)

		switch e := p.Eligibility.(type) {
		case models.Unknown:
			b.Recommend("Gather share register and business activity records to confirm the continuity of ownership or same business test")
		case models.Excluded:
			b.Warn("Losses available in " + p.FinancialYear + " could not be utilised: " + e.Reasons[0].Message)
		}
	}
	s.FutureTaxValue = money.Round(s.ClosingBalance.Mul(corporate))
	s.OverallRisk = summary.OverallRisk(levels)

	if s.SkippedTransactions > 0 {
		b.Warn("Some transactions had no recognised transaction type and were left out of the profit and loss reconstruction")
	}
	if s.ClosingBalance.IsPositive() {
		b.Recommend("Carry forward the remaining loss balance and record it in the tax return loss schedule")
	}
	if s.CapitalLossesCarriedForward.IsPositive() {
		b.Recommend("Prior capital losses can only be applied against capital gains")
	}
	s.Metadata = b.Build(r)

	slog.Debug("loss analysis complete",
		"tenant_id", tenantID,
		"years", len(s.Positions),
		"skipped_transactions", s.SkippedTransactions,
		"overall_risk", s.OverallRisk,
	)
	return s, nil
}
