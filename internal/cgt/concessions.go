package cgt

import (
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/shopspring/decimal"
)

// Small business concession thresholds.
var (
	NetAssetThreshold     = decimal.NewFromInt(6_000_000)
	SmallBusinessTurnover = decimal.NewFromInt(2_000_000)
	RetirementLifetimeCap = decimal.NewFromInt(500_000)
	cliffEdgeBand         = decimal.RequireFromString("0.90")
	activeAssetReduction  = decimal.RequireFromString("0.5")
)

const (
	FifteenYearOwnership = 15
	RolloverYears        = 2
)

// NetAssetTest is the maximum net asset value test. Assessed is false when
// the entity's own net assets were not supplied; Met is then false too.
type NetAssetTest struct {
	Assessed         bool            `json:"assessed"`
	OwnNetAssets     decimal.Decimal `json:"ownNetAssets"`
	ConnectedAssets  decimal.Decimal `json:"connectedAssets"`
	AggregatedAssets decimal.Decimal `json:"aggregatedAssets"`
	Threshold        decimal.Decimal `json:"threshold"`
	Met              bool            `json:"met"`
	CliffEdgeWarning bool            `json:"cliffEdgeWarning"`
}

// CheckNetAssets compares aggregated assets against the threshold. The cliff
// edge warning is raised only while the test passes within 10% of the limit.
func CheckNetAssets(own, connected decimal.Decimal) NetAssetTest {
	aggregated := own.Add(connected)
	met := !aggregated.GreaterThan(NetAssetThreshold)
	return NetAssetTest{
		Assessed:         true,
		OwnNetAssets:     own,
		ConnectedAssets:  connected,
		AggregatedAssets: aggregated,
		Threshold:        NetAssetThreshold,
		Met:              met,
		CliffEdgeWarning: met && !aggregated.LessThan(NetAssetThreshold.Mul(cliffEdgeBand)),
	}
}

// Concession is one small business concession's availability and effect.
type Concession struct {
	Eligible bool            `json:"eligible"`
	Amount   decimal.Decimal `json:"amount"`
}

// RetirementExemption tracks the lifetime cap.
type RetirementExemption struct {
	Concession
	LifetimeLimit decimal.Decimal `json:"lifetimeLimit"`
	PriorUsage    decimal.Decimal `json:"priorUsage"`
	RemainingCap  decimal.Decimal `json:"remainingCap"`
}

// Rollover defers the gain until a replacement asset is acquired.
type Rollover struct {
	Concession
	ReplacementDeadline time.Time `json:"replacementDeadline,omitzero"`
}

// Concessions is the small business concession stack for a net capital gain.
type Concessions struct {
	NetAssetTest          NetAssetTest        `json:"netAssetTest"`
	TurnoverTestAssessed  bool                `json:"turnoverTestAssessed"`
	TurnoverTestMet       bool                `json:"turnoverTestMet"`
	BasicConditionsMet    bool                `json:"basicConditionsMet"`
	ActiveAssetPercentage decimal.Decimal     `json:"activeAssetPercentage"`
	YearsOfOwnership      int                 `json:"yearsOfOwnership"`
	FifteenYearExemption  Concession          `json:"fifteenYearExemption"`
	ActiveAssetReduction  Concession          `json:"activeAssetReduction"`
	RetirementExemption   RetirementExemption `json:"retirementExemption"`
	Rollover              Rollover            `json:"rollover"`
	GainAfterConcessions  decimal.Decimal     `json:"gainAfterConcessions"`

	// ReviewRequired is set when the basic conditions are not met and a test
	// could not be assessed.
	ReviewRequired bool `json:"reviewRequired"`
}

// EvaluateConcessions applies the concession stack to a positive net gain.
// The 15-year exemption removes the whole gain. Otherwise the 50% reduction
// applies, then the retirement exemption up to the remaining cap. Rollover is
// reported as an alternative deferral of the reduced gain.
//
// A test whose inputs were not supplied is unassessed and never passes, so a
// sparse entity context cannot unlock a concession.
func EvaluateConcessions(netGain decimal.Decimal, entity *models.EntityContext, lastDisposal time.Time) Concessions {
	c := Concessions{NetAssetTest: NetAssetTest{Threshold: NetAssetThreshold}}
	var priorRetirement decimal.Decimal
	if entity != nil {
		c.ActiveAssetPercentage = entity.ActiveAssetPercentage
		c.YearsOfOwnership = entity.YearsOfOwnership
		priorRetirement = entity.RetirementExemptionUsed
	}
	if own, ok := entity.NetAssets(); ok {
		c.NetAssetTest = CheckNetAssets(own, entity.ConnectedAssets())
	}
	if turnover, ok := entity.Turnover(); ok {
		c.TurnoverTestAssessed = true
		c.TurnoverTestMet = turnover.LessThan(SmallBusinessTurnover)
	}
	c.BasicConditionsMet = c.NetAssetTest.Met || c.TurnoverTestMet
	c.ReviewRequired = !c.BasicConditionsMet && (!c.NetAssetTest.Assessed || !c.TurnoverTestAssessed)

	remainingCap := money.NonNegative(RetirementLifetimeCap.Sub(priorRetirement))
	c.RetirementExemption = RetirementExemption{
		LifetimeLimit: RetirementLifetimeCap,
		PriorUsage:    priorRetirement,
		RemainingCap:  remainingCap,
	}
	c.GainAfterConcessions = netGain

	if !c.BasicConditionsMet || !netGain.IsPositive() {
		return c
	}

	if c.YearsOfOwnership >= FifteenYearOwnership {
		c.FifteenYearExemption = Concession{Eligible: true, Amount: netGain}
		c.GainAfterConcessions = decimal.Zero
		return c
	}

	reduction := money.Round(netGain.Mul(activeAssetReduction))
	c.ActiveAssetReduction = Concession{Eligible: true, Amount: reduction}
	remaining := netGain.Sub(reduction)

	if remainingCap.IsPositive() {
		used := money.Min(remaining, remainingCap)
		c.RetirementExemption.Concession = Concession{Eligible: true, Amount: used}
		remaining = remaining.Sub(used)
	}

	c.Rollover = Rollover{
		Concession:          Concession{Eligible: true, Amount: netGain.Sub(reduction)},
		ReplacementDeadline: lastDisposal.AddDate(RolloverYears, 0, 0),
	}
	c.GainAfterConcessions = remaining
	return c
}
