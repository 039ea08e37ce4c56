package losses

import (
	"time"

	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/shopspring/decimal"
)

// LossType distinguishes revenue losses from capital losses.
type LossType string

const (
	RevenueLoss LossType = "revenue"
	CapitalLoss LossType = "capital"
)

// PriorOrigin labels the tranche seeded from losses carried in from before the analysed years.
const PriorOrigin = "prior"

// Reason codes for excluded loss positions.
const (
	ReasonOwnershipChanged = "continuity_of_ownership_failed"
	ReasonBusinessChanged  = "same_business_test_failed"
)

// Tranche is the unused part of the loss incurred in one origin year.
type Tranche struct {
	OriginYear string          `json:"originYear"`
	Amount     decimal.Decimal `json:"amount"`
}

// State is carried from one year to the next. Tranches are ordered oldest first.
type State struct {
	Tranches []Tranche
}

// Balance totals the unused tranches.
func (s State) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Tranches {
		total = total.Add(t.Amount)
	}
	return total
}

// YearIncome is the reconstructed net income of one financial year.
type YearIncome struct {
	Year      fiscal.Year
	NetIncome decimal.Decimal
}

// LossPosition is the loss position for one financial year.
type LossPosition struct {
	FinancialYear              string             `json:"financialYear"`
	LossType                   LossType           `json:"lossType"`
	OpeningBalance             decimal.Decimal    `json:"openingBalance"`
	CurrentYearLoss            decimal.Decimal    `json:"currentYearLoss"`
	CurrentYearProfit          decimal.Decimal    `json:"currentYearProfit"`
	Utilized                   decimal.Decimal    `json:"utilized"`
	ClosingBalance             decimal.Decimal    `json:"closingBalance"`
	TaxableIncome              decimal.Decimal    `json:"taxableIncome"`
	Tranches                   []Tranche          `json:"tranches"`
	Eligibility                models.Eligibility `json:"eligibility"`
	RiskLevel                  models.RiskLevel   `json:"riskLevel"`
	Confidence                 int                `json:"confidence"`
	ProfessionalReviewRequired bool               `json:"professionalReviewRequired"`
	AmendmentPeriodExpired     bool               `json:"amendmentPeriodExpired"`
	AmendmentWarning           string             `json:"amendmentWarning,omitempty"`
	FutureTaxValue             decimal.Decimal    `json:"futureTaxValue"`
}

// Rules hold the per-entity inputs that every year's step needs.
type Rules struct {
	EntityType    models.EntityType
	Continuity    *models.ContinuityEvidence
	CorporateRate decimal.Decimal
	Now           time.Time
}

// Seed returns the starting state for a replay.
func Seed(prior decimal.Decimal) State {
	if !prior.IsPositive() {
		return State{}
	}
	return State{Tranches: []Tranche{{OriginYear: PriorOrigin, Amount: money.Round(prior)}}}
}

// Step applies one financial year to the carried state. It does not mutate
// its input; the returned state's balance is the next year's opening balance.
func (r Rules) Step(state State, year YearIncome) (State, LossPosition) {
	opening := state.Balance()
	net := money.Round(year.NetIncome)

	pos := LossPosition{
		FinancialYear:     year.Year.Label(),
		LossType:          RevenueLoss,
		OpeningBalance:    opening,
		CurrentYearLoss:   decimal.Zero,
		CurrentYearProfit: decimal.Zero,
		Utilized:          decimal.Zero,
		TaxableIncome:     decimal.Zero,
	}

	next := State{Tranches: make([]Tranche, 0, len(state.Tranches)+1)}
	next.Tranches = append(next.Tranches, state.Tranches...)

	if net.IsNegative() {
		pos.CurrentYearLoss = net.Abs()
		next.Tranches = append(next.Tranches, Tranche{OriginYear: pos.FinancialYear, Amount: pos.CurrentYearLoss})
	} else {
		pos.CurrentYearProfit = net
	}

	hasBalance := opening.IsPositive() || pos.CurrentYearLoss.IsPositive()
	r.assess(&pos, hasBalance)

	if pos.CurrentYearProfit.IsPositive() && opening.IsPositive() {
		if _, excluded := pos.Eligibility.(models.Excluded); !excluded {
			pos.Utilized, next.Tranches = consume(next.Tranches, pos.CurrentYearProfit)
		}
	}
	pos.TaxableIncome = pos.CurrentYearProfit.Sub(pos.Utilized)
	pos.ClosingBalance = next.Balance()
	pos.Tranches = append([]Tranche{}, next.Tranches...)
	pos.FutureTaxValue = money.Round(pos.ClosingBalance.Mul(r.CorporateRate))

	if pos.CurrentYearLoss.IsPositive() {
		r.checkAmendment(&pos, year.Year)
	}
	return next, pos
}

// consume uses up to amount from the oldest tranches first, dropping emptied ones.
func consume(tranches []Tranche, amount decimal.Decimal) (decimal.Decimal, []Tranche) {
	used := decimal.Zero
	out := make([]Tranche, 0, len(tranches))
	for _, t := range tranches {
		remaining := amount.Sub(used)
		if remaining.IsPositive() {
			take := money.Min(t.Amount, remaining)
			used = used.Add(take)
			t.Amount = t.Amount.Sub(take)
		}
		if t.Amount.IsPositive() {
			out = append(out, t)
		}
	}
	return used, out
}

// assess applies the continuity of ownership and same business tests.
func (r Rules) assess(pos *LossPosition, hasBalance bool) {
	switch {
	case !hasBalance:
		pos.Eligibility = models.Eligible{}
		pos.Confidence = 100
		pos.RiskLevel = models.RiskLow
	case r.Continuity == nil:
		pos.Eligibility = models.Unknown{
			RiskLevel:  models.RiskMedium,
			Confidence: 50,
			Reason:     "no ownership or business continuity information; loss availability cannot be confirmed",
		}
		pos.Confidence = 50
		pos.RiskLevel = models.RiskMedium
		pos.ProfessionalReviewRequired = true
	case r.Continuity.OwnershipMaintained:
		pos.Eligibility = models.Eligible{}
		pos.Confidence = 90
		pos.RiskLevel = models.RiskLow
	case r.Continuity.SameBusiness:
		pos.Eligibility = models.Eligible{}
		pos.Confidence = 75
		pos.RiskLevel = models.RiskMedium
		pos.ProfessionalReviewRequired = true
	default:
		pos.Eligibility = models.Excluded{Reasons: []models.Reason{
			{Code: ReasonOwnershipChanged, Message: "majority ownership was not maintained"},
			{Code: ReasonBusinessChanged, Message: "the same business was not carried on"},
		}}
		pos.Confidence = 90
		pos.RiskLevel = models.RiskHigh
		pos.ProfessionalReviewRequired = true
	}
}

// AmendmentYears is the period after a financial year ends during which its
// assessment can be amended.
func AmendmentYears(t models.EntityType) int {
	if t == models.EntityIndividual {
		return 2
	}
	return 4
}

func (r Rules) checkAmendment(pos *LossPosition, y fiscal.Year) {
	closes := y.EndDate().AddDate(AmendmentYears(r.EntityType), 0, 0)
	if r.Now.After(closes) {
		pos.AmendmentPeriodExpired = true
		pos.AmendmentWarning = "Amendment period for " + pos.FinancialYear + " closed on " + closes.Format("2 January 2006") + "; the loss can no longer be revised"
	}
}

// Replay folds Step over years, which must be in chronological order.
func (r Rules) Replay(seed State, years []YearIncome) []LossPosition {
	positions := make([]LossPosition, 0, len(years))
	state := seed
	for _, y := range years {
		var pos LossPosition
		state, pos = r.Step(state, y)
		positions = append(positions, pos)
	}
	return positions
}
