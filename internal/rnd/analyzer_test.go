package rnd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/rocjay1/tax-analyzer/internal/summary"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(rates.Fixed(rates.Defaults()), WithClock(func() time.Time { return testNow }))
}

func allMet(evidence ...string) models.FourCriteria {
	var f models.FourCriteria
	for _, c := range models.Criteria {
		f.Set(c, models.CriterionResult{Met: true, Confidence: 90, Evidence: evidence})
	}
	return f
}

func candidate(id string, amount int64, criteria models.FourCriteria) models.ClassifiedTransaction {
	return models.ClassifiedTransaction{
		TenantID:      "tenant-1",
		TransactionID: id,
		FinancialYear: "FY2023-24",
		Date:          time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(-amount),
		SupplierName:  "Lab Co",
		Category:      models.CategoryRnD,
		Confidence:    90,
		RnD:           models.RnDAssessment{Candidate: true, Eligible: true, Criteria: criteria},
	}
}

func TestAnalyze_EligibleProject(t *testing.T) {
	evidence := []string{"hypothesis documented", "experiment log", "test results"}
	txs := []models.ClassifiedTransaction{
		candidate("t1", 100_000, allMet(evidence...)),
		candidate("t2", 100_000, allMet(evidence[:1]...)),
		candidate("t3", 100_000, allMet()),
	}
	entity := &models.EntityContext{EntityType: models.EntityCompany, AggregatedTurnover: turnover(5_000_000)}

	s, err := newTestAnalyzer().Analyze(context.Background(), txs, entity)
	require.NoError(t, err)

	require.Len(t, s.EligibleProjects, 1)
	assert.Empty(t, s.ExcludedProjects)
	p := s.EligibleProjects[0]
	assert.Equal(t, "research & development|lab co", p.Key)
	assert.Equal(t, 90, p.Confidence)
	assert.Equal(t, evidence, p.Evidence)
	assert.Equal(t, models.Eligible{}, p.Eligibility)
	assert.True(t, p.TotalExpenditure.Equal(decimal.NewFromInt(300_000)))

	assert.True(t, s.OffsetRate.Rate.Equal(decimal.RequireFromString("0.435")))
	assert.True(t, s.OffsetRate.IsRefundable)
	assert.True(t, s.EstimatedOffset.Equal(decimal.NewFromInt(130_500)), s.EstimatedOffset.String())
	assert.True(t, s.RefundableOffset.Equal(decimal.NewFromInt(130_500)))
	assert.False(t, s.CapApplied)
	assert.True(t, s.ProfessionalReviewRequired)

	require.Len(t, s.ByYear, 1)
	y := s.ByYear[0]
	assert.Equal(t, "FY2023-24", y.FinancialYear)
	assert.True(t, y.MinimumExpenditureMet)
	assert.Equal(t, time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), y.RegistrationDeadline)
	assert.Equal(t, NotRegistered, y.RegistrationStatus)
	assert.Equal(t, "tenant-1", s.TenantID)
	assert.NotEmpty(t, s.LegislativeReferences)
}

func TestAnalyze_ValueWeightedCriteria(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	small := candidate("small", 100, allMet(evidence...))
	large := candidate("large", 10_000, allMet(evidence...))
	large.RnD.Criteria.OutcomeUnknown = models.CriterionResult{Met: false, Confidence: 80}

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{small, large}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 1)
	p := s.ExcludedProjects[0]
	score := p.Criteria[0]
	assert.Equal(t, models.CriterionOutcomeUnknown, score.Criterion)
	assert.True(t, score.PassRatio.Equal(decimal.RequireFromString("0.0099")), score.PassRatio.String())
	assert.False(t, score.Met)

	ex, ok := p.Eligibility.(models.Excluded)
	require.True(t, ok)
	require.Len(t, ex.Reasons, 1)
	assert.Equal(t, ReasonCriterionNotMet, ex.Reasons[0].Code)
	assert.True(t, s.EstimatedOffset.IsZero())
	assert.Empty(t, s.ByYear)
}

func TestAnalyze_InsufficientEvidenceCapsConfidence(t *testing.T) {
	tx := candidate("t1", 50_000, allMet("only one", "and two"))
	tx.Confidence = 95

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{tx}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 1)
	p := s.ExcludedProjects[0]
	assert.Equal(t, LowEvidenceCeiling, p.Confidence)

	ex := p.Eligibility.(models.Excluded)
	codes := make([]string, 0, len(ex.Reasons))
	for _, r := range ex.Reasons {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{ReasonInsufficientEvidence, ReasonLowConfidence}, codes)
	assert.True(t, s.ProfessionalReviewRequired, "borderline exclusions need review")
}

func TestAnalyze_NoEligibleExpenditure(t *testing.T) {
	tx := candidate("t1", 10_000, allMet("a", "b", "c"))
	tx.RnD.Eligible = false

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{tx}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 1)
	ex := s.ExcludedProjects[0].Eligibility.(models.Excluded)
	assert.Equal(t, ReasonNoEligibleExpenditure, ex.Reasons[0].Code)
}

func TestAnalyze_ExcludedSortedByTotal(t *testing.T) {
	a := candidate("a", 1_000, allMet())
	a.SupplierName = "Alpha"
	b := candidate("b", 9_000, allMet())
	b.SupplierName = "Beta"
	c := candidate("c", 5_000, allMet())
	c.SupplierName = "Gamma"

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{a, b, c}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 3)
	assert.Equal(t, "Beta", s.ExcludedProjects[0].Supplier)
	assert.Equal(t, "Gamma", s.ExcludedProjects[1].Supplier)
	assert.Equal(t, "Alpha", s.ExcludedProjects[2].Supplier)
	assert.Equal(t, 3, s.TotalProjects)
}

func TestAnalyze_NonCandidatesIgnored(t *testing.T) {
	tx := candidate("t1", 10_000, allMet("a", "b", "c"))
	tx.RnD.Candidate = false

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{tx}, nil)
	require.NoError(t, err)
	assert.Zero(t, s.TotalProjects)
	assert.NotNil(t, s.EligibleProjects)
}

func TestAnalyze_LargeEntityNonRefundable(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	txs := []models.ClassifiedTransaction{candidate("t1", 1_000_000, allMet(evidence...))}
	entity := &models.EntityContext{EntityType: models.EntityCompany, AggregatedTurnover: turnover(60_000_000)}

	s, err := newTestAnalyzer().Analyze(context.Background(), txs, entity)
	require.NoError(t, err)

	assert.False(t, s.OffsetRate.IsRefundable)
	assert.True(t, s.OffsetRate.Rate.Equal(decimal.RequireFromString("0.385")))
	assert.True(t, s.NonRefundableOffset.Equal(decimal.NewFromInt(385_000)))
	assert.True(t, s.RefundableOffset.IsZero())
}

func TestAnalyze_NonCompanyWarning(t *testing.T) {
	entity := &models.EntityContext{EntityType: models.EntityTrust}
	s, err := newTestAnalyzer().Analyze(context.Background(), nil, entity)
	require.NoError(t, err)
	assert.Contains(t, s.Warnings, "The R&D tax incentive is only available to companies; entity type is trust")
}

func TestAnalyze_BelowMinimumExpenditure(t *testing.T) {
	txs := []models.ClassifiedTransaction{candidate("t1", 15_000, allMet("a", "b", "c"))}
	s, err := newTestAnalyzer().Analyze(context.Background(), txs, nil)
	require.NoError(t, err)

	require.Len(t, s.ByYear, 1)
	assert.False(t, s.ByYear[0].MinimumExpenditureMet)
	assert.True(t, s.ByYear[0].Raw.Equal(decimal.RequireFromString("6525")))
}

// liveRates is a LiveSource that always answers with the same values.
type liveRates map[string]decimal.Decimal

func (l liveRates) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return l, nil
}

func TestAnalyze_Idempotent(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	txs := []models.ClassifiedTransaction{
		candidate("t2", 40_000, allMet(evidence...)),
		candidate("t1", 60_000, allMet(evidence...)),
	}
	entity := &models.EntityContext{EntityType: models.EntityCompany}

	clock := testNow
	provider := rates.NewProvider(liveRates{
		rates.KeyRnDOffset:         decimal.RequireFromString("0.435"),
		rates.KeyCorporateSmall:    decimal.RequireFromString("0.25"),
		rates.KeyCorporateStandard: decimal.RequireFromString("0.30"),
	}, rates.WithClock(func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}))
	a := NewAnalyzer(provider, WithClock(func() time.Time { return testNow }))

	first, err := a.Analyze(context.Background(), txs, entity)
	require.NoError(t, err)
	cached, err := a.Analyze(context.Background(), txs, entity)
	require.NoError(t, err)
	provider.Invalidate()
	refetched, err := a.Analyze(context.Background(), txs, entity)
	require.NoError(t, err)

	assert.Equal(t, rates.SourceLive, first.RateVerification.Sources[rates.KeyRnDOffset])
	assert.Equal(t, rates.SourceCache, cached.RateVerification.Sources[rates.KeyRnDOffset])
	assert.True(t, refetched.RateVerification.VerifiedAt.After(first.RateVerification.VerifiedAt))

	want := withoutRateVerification(first)
	assert.Equal(t, want, withoutRateVerification(cached))
	assert.Equal(t, want, withoutRateVerification(refetched))
}

func withoutRateVerification(s *Summary) Summary {
	out := *s
	out.RateVerification = summary.RateVerification{}
	return out
}

func TestAnalyze_CreditNotesReduceExpenditure(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	invoice := candidate("inv", 100_000, allMet(evidence...))
	invoice.TransactionType = models.TypePayable
	credit := candidate("credit", 0, allMet(evidence...))
	credit.TransactionType = models.TypePayableCredit
	credit.Amount = decimal.NewFromInt(40_000)

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{invoice, credit}, nil)
	require.NoError(t, err)

	require.Len(t, s.EligibleProjects, 1)
	p := s.EligibleProjects[0]
	assert.True(t, p.TotalExpenditure.Equal(decimal.NewFromInt(60_000)), p.TotalExpenditure.String())
	assert.True(t, p.EligibleExpenditure.Equal(decimal.NewFromInt(60_000)), p.EligibleExpenditure.String())
	assert.True(t, s.EstimatedOffset.Equal(decimal.NewFromInt(26_100)), s.EstimatedOffset.String())
}

func TestAnalyze_RefundsNeverMakeExpenditureNegative(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	spend := candidate("spend", 10_000, allMet(evidence...))
	spend.TransactionType = models.TypeSpend
	refund := candidate("refund", 0, allMet(evidence...))
	refund.TransactionType = models.TypeReceive
	refund.Amount = decimal.NewFromInt(15_000)

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{spend, refund}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 1)
	p := s.ExcludedProjects[0]
	assert.True(t, p.TotalExpenditure.IsZero())
	assert.True(t, p.EligibleExpenditure.IsZero())
	assert.True(t, s.EstimatedOffset.IsZero())
}

func TestExpenditure(t *testing.T) {
	tx := models.ClassifiedTransaction{Amount: decimal.NewFromInt(-500)}
	assert.True(t, Expenditure(tx).Equal(decimal.NewFromInt(500)), "untyped counts at face value")

	tx.TransactionType = models.TypePayable
	assert.True(t, Expenditure(tx).Equal(decimal.NewFromInt(500)))

	tx.TransactionType = models.TypePayableCredit
	assert.True(t, Expenditure(tx).Equal(decimal.NewFromInt(-500)))

	tx.TransactionType = models.TypeSpend
	assert.True(t, Expenditure(tx).Equal(decimal.NewFromInt(500)))
}

func TestAnalyze_ConfidenceIsNotRoundedUpToThreshold(t *testing.T) {
	evidence := []string{"a", "b", "c"}
	low := candidate("low", 10_000, allMet(evidence...))
	low.Confidence = 69
	high := candidate("high", 10_000, allMet(evidence...))
	high.Confidence = 70

	s, err := newTestAnalyzer().Analyze(context.Background(), []models.ClassifiedTransaction{low, high}, nil)
	require.NoError(t, err)

	require.Len(t, s.ExcludedProjects, 1)
	p := s.ExcludedProjects[0]
	assert.Equal(t, 70, p.Confidence, "reported confidence is rounded")
	ex, ok := p.Eligibility.(models.Excluded)
	require.True(t, ok)
	require.Len(t, ex.Reasons, 1)
	assert.Equal(t, ReasonLowConfidence, ex.Reasons[0].Code)
	assert.Contains(t, ex.Reasons[0].Message, "69.5")
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	a := newTestAnalyzer()

	bad := candidate("t1", 1_000, allMet())
	bad.FinancialYear = "2024"
	_, err := a.Analyze(context.Background(), []models.ClassifiedTransaction{bad}, nil)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.True(t, errors.Is(err, models.ErrInvalidFinancialYear))

	other := candidate("t2", 1_000, allMet())
	other.TenantID = "tenant-2"
	_, err = a.Analyze(context.Background(), []models.ClassifiedTransaction{candidate("t1", 1_000, allMet()), other}, nil)
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = a.Analyze(context.Background(), nil, &models.EntityContext{AggregatedTurnover: turnover(-1)})
	assert.True(t, errors.Is(err, models.ErrValidation))
}
