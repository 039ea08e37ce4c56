// Package rnd estimates R&D tax incentive offsets from classified transactions.
package rnd

import (
	"context"
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

// MaterialityThreshold triggers professional review of the estimated offset.
var MaterialityThreshold = decimal.NewFromInt(50_000)

// YearOffset is the offset position for one financial year.
type YearOffset struct {
	FinancialYear         string          `json:"financialYear"`
	EligibleExpenditure   decimal.Decimal `json:"eligibleExpenditure"`
	MinimumExpenditureMet bool            `json:"minimumExpenditureMet"`
	Split
	RegistrationDeadline time.Time    `json:"registrationDeadline"`
	DaysUntilDeadline    int          `json:"daysUntilDeadline"`
	RegistrationStatus   Registration `json:"registrationStatus"`
}

// Summary is the result of an R&D analysis.
type Summary struct {
	summary.Metadata
	TotalProjects              int             `json:"totalProjects"`
	EligibleProjects           []Project       `json:"eligibleProjects"`
	ExcludedProjects           []Project       `json:"excludedProjects"`
	TotalExpenditure           decimal.Decimal `json:"totalExpenditure"`
	TotalEligibleExpenditure   decimal.Decimal `json:"totalEligibleExpenditure"`
	OffsetRate                 OffsetRate      `json:"offsetRate"`
	EstimatedOffset            decimal.Decimal `json:"estimatedOffset"`
	RefundableOffset           decimal.Decimal `json:"refundableOffset"`
	NonRefundableOffset        decimal.Decimal `json:"nonRefundableOffset"`
	CapApplied                 bool            `json:"capApplied"`
	ByYear                     []YearOffset    `json:"byYear"`
	OverallConfidence          int             `json:"overallConfidence"`
	ProfessionalReviewRequired bool            `json:"professionalReviewRequired"`
}

// RequiresReview reports whether the position should go to a tax professional.
func (s *Summary) RequiresReview() bool {
	return s.ProfessionalReviewRequired
}

// Analyzer runs the R&D offset analysis.
type Analyzer struct {
	rates rates.Reader
	now   func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock sets the time source used for registration deadlines.
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

// Analyze groups R&D candidate transactions into projects, tests each project,
// and estimates the offset for eligible expenditure per financial year.
func (a *Analyzer) Analyze(ctx context.Context, txs []models.ClassifiedTransaction, entity *models.EntityContext) (*Summary, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	if err := models.CheckTenant(txs); err != nil {
		return nil, err
	}

	var candidates []models.ClassifiedTransaction
	for _, t := range txs {
		if t.RnD.Candidate {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	years := make([]string, len(candidates))
	for i, t := range candidates {
		y, err := fiscal.Of(t)
		if err != nil {
			return nil, err
		}
		years[i] = y.Label()
	}

	r := a.rates.GetCurrentRates(ctx)
	tenantID := ""
	if len(txs) > 0 {
		tenantID = txs[0].TenantID
	}
	b := summary.NewBuilder(tenantID)
	cite(b)

	s := &Summary{
		EligibleProjects: []Project{},
		ExcludedProjects: []Project{},
		ByYear:           []YearOffset{},
		OffsetRate:       ResolveOffsetRate(entity, r),
	}

	eligibleByYear := summary.NewYearTotals()
	weighted := decimal.Zero
	for _, p := range groupProjects(candidates, years) {
		p.assess()
		p.txs = nil
		s.TotalExpenditure = s.TotalExpenditure.Add(p.TotalExpenditure)
		weighted = weighted.Add(p.TotalExpenditure.Mul(decimal.NewFromInt(int64(p.Confidence))))

		if _, ok := p.Eligibility.(models.Eligible); ok {
			s.TotalEligibleExpenditure = s.TotalEligibleExpenditure.Add(p.EligibleExpenditure)
			for label, amount := range p.eligibleByYear {
				eligibleByYear.Add(label, amount)
			}
			s.EligibleProjects = append(s.EligibleProjects, *p)
		} else {
			s.ExcludedProjects = append(s.ExcludedProjects, *p)
		}
	}
	sortProjects(s.EligibleProjects)
	sortProjects(s.ExcludedProjects)
	s.TotalProjects = len(s.EligibleProjects) + len(s.ExcludedProjects)
	s.OverallConfidence = int(money.Div(weighted, s.TotalExpenditure).Round(0).IntPart())

	now := a.now()
	for _, label := range eligibleByYear.Labels() {
		y := fiscal.MustParse(label)
		yo := a.yearOffset(y, eligibleByYear.Get(label), s.OffsetRate, now)
		s.ByYear = append(s.ByYear, yo)
		s.EstimatedOffset = s.EstimatedOffset.Add(yo.Raw)
		s.RefundableOffset = s.RefundableOffset.Add(yo.Refundable)
		s.NonRefundableOffset = s.NonRefundableOffset.Add(yo.NonRefundable)
		s.CapApplied = s.CapApplied || yo.CapApplied
		advise(b, yo)
	}

	s.ProfessionalReviewRequired = s.EstimatedOffset.GreaterThan(MaterialityThreshold) || hasBorderline(s.ExcludedProjects)
	recommend(b, s, entity)
	s.Metadata = b.Build(r)

	slog.Debug("rnd analysis complete",
		"tenant_id", tenantID,
		"candidates", len(candidates),
		"projects", s.TotalProjects,
		"eligible_projects", len(s.EligibleProjects),
	)
	return s, nil
}

func (a *Analyzer) yearOffset(y fiscal.Year, eligible decimal.Decimal, rate OffsetRate, now time.Time) YearOffset {
	eligible = money.Round(eligible)
	deadline := RegistrationDeadline(y.EndDate())
	return YearOffset{
		FinancialYear:         y.Label(),
		EligibleExpenditure:   eligible,
		MinimumExpenditureMet: !eligible.LessThan(MinimumExpenditure),
		Split:                 SplitOffset(eligible.Mul(rate.Rate), rate.IsRefundable),
		RegistrationDeadline:  deadline,
		DaysUntilDeadline:     DaysUntil(deadline, now),
		RegistrationStatus:    RegistrationStatus(y.EndDate(), now),
	}
}

// hasBorderline reports excluded projects that failed only on confidence or evidence.
func hasBorderline(excluded []Project) bool {
	for _, p := range excluded {
		ex, ok := p.Eligibility.(models.Excluded)
		if !ok {
			continue
		}
		borderline := true
		for _, reason := range ex.Reasons {
			if reason.Code != ReasonLowConfidence && reason.Code != ReasonInsufficientEvidence {
				borderline = false
				break
			}
		}
		if borderline {
			return true
		}
	}
	return false
}

func cite(b *summary.Builder) {
	b.Cite("Division 355 ITAA 1997", "research and development tax incentive")
	b.Cite("s 355-25 ITAA 1997", "core R&D activities")
	b.Cite("s 355-100 ITAA 1997", "offset rates and refundable cap")
	b.Cite("s 27A Industry Research and Development Act 1986", "registration of R&D activities")
}

func advise(b *summary.Builder, yo YearOffset) {
	switch yo.RegistrationStatus {
	case DeadlinePassed:
		b.Warn("R&D registration deadline for " + yo.FinancialYear + " has passed (" + yo.RegistrationDeadline.Format("2 January 2006") + ")")
	case DeadlineApproaching:
		b.Warn("R&D registration deadline for " + yo.FinancialYear + " is " + yo.RegistrationDeadline.Format("2 January 2006"))
		b.Recommend("Lodge the R&D activities registration for " + yo.FinancialYear + " before the deadline")
	}
	if !yo.MinimumExpenditureMet {
		b.Recommend("Eligible expenditure for " + yo.FinancialYear + " is below $20,000; the offset is generally only available above this amount unless paid to a registered research service provider")
	}
	if yo.CapApplied {
		b.Warn("Refundable offset for " + yo.FinancialYear + " exceeds the $4,000,000 annual cap; the excess is non-refundable")
	}
}

func recommend(b *summary.Builder, s *Summary, entity *models.EntityContext) {
	if entity == nil {
		b.Warn("No entity context supplied; assumed a base rate entity with turnover under $20M")
	} else if t := entity.Type(); t != models.EntityCompany && t != models.EntityUnknown {
		b.Warn("The R&D tax incentive is only available to companies; entity type is " + string(t))
	}
	if len(s.ExcludedProjects) > 0 {
		b.Recommend("Review excluded projects; keep contemporaneous records of hypotheses and experimental results")
	}
	if len(s.EligibleProjects) > 0 {
		b.Recommend("Keep records linking each eligible expense to a registered R&D activity")
	}
	if s.ProfessionalReviewRequired {
		b.Recommend("Have a registered tax agent review the R&D claim before lodgment")
	}
}
