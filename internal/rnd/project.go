package rnd

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/money"
	"github.com/shopspring/decimal"
)

// Thresholds for project eligibility.
var (
	CriterionThreshold = decimal.RequireFromString("0.70")
)

const (
	MinConfidence      = 70
	MinEvidenceItems   = 3
	LowEvidenceCeiling = 50
)

// Reason codes attached to excluded projects.
const (
	ReasonCriterionNotMet       = "criterion_not_met"
	ReasonNoEligibleExpenditure = "no_eligible_expenditure"
	ReasonLowConfidence         = "low_confidence"
	ReasonInsufficientEvidence  = "insufficient_evidence"
)

// CriterionScore is the value-weighted result for one criterion across a project.
type CriterionScore struct {
	Criterion models.Criterion `json:"criterion"`
	PassRatio decimal.Decimal  `json:"passRatio"`
	Met       bool             `json:"met"`
}

// Project groups candidate transactions that share a category and supplier.
type Project struct {
	Key                 string             `json:"key"`
	Category            string             `json:"category"`
	Supplier            string             `json:"supplier"`
	FinancialYears      []string           `json:"financialYears"`
	TransactionCount    int                `json:"transactionCount"`
	TotalExpenditure    decimal.Decimal    `json:"totalExpenditure"`
	EligibleExpenditure decimal.Decimal    `json:"eligibleExpenditure"`
	Criteria            []CriterionScore   `json:"criteria"`
	Confidence          int                `json:"confidence"`
	Evidence            []string           `json:"evidence"`
	Eligibility         models.Eligibility `json:"eligibility"`

	// eligible expenditure per financial-year label, for offset computation
	eligibleByYear map[string]decimal.Decimal
	txs            []models.ClassifiedTransaction
	confidence     decimal.Decimal
}

// ProjectKey builds the grouping key for a transaction.
func ProjectKey(t models.ClassifiedTransaction) string {
	return strings.ToLower(strings.TrimSpace(string(t.Category))) + "|" + strings.ToLower(strings.TrimSpace(t.SupplierName))
}

// groupProjects buckets transactions by project key. Input order is preserved
// within each project; txs must already be sorted. years holds the normalised
// financial-year label for each transaction, by index.
func groupProjects(txs []models.ClassifiedTransaction, years []string) []*Project {
	index := make(map[string]*Project)
	var projects []*Project

	for i, t := range txs {
		key := ProjectKey(t)
		p, ok := index[key]
		if !ok {
			p = &Project{
				Key:            key,
				Category:       strings.TrimSpace(string(t.Category)),
				Supplier:       strings.TrimSpace(t.SupplierName),
				eligibleByYear: make(map[string]decimal.Decimal),
			}
			index[key] = p
			projects = append(projects, p)
		}
		p.txs = append(p.txs, t)
		p.TransactionCount++

		amount := Expenditure(t)
		p.TotalExpenditure = p.TotalExpenditure.Add(amount)
		if t.RnD.Eligible {
			p.EligibleExpenditure = p.EligibleExpenditure.Add(amount)
			p.eligibleByYear[years[i]] = p.eligibleByYear[years[i]].Add(amount)
		}
		if !slices.Contains(p.FinancialYears, years[i]) {
			p.FinancialYears = append(p.FinancialYears, years[i])
		}
	}

	for _, p := range projects {
		sort.Strings(p.FinancialYears)
		p.TotalExpenditure = money.Round(money.NonNegative(p.TotalExpenditure))
		p.EligibleExpenditure = money.Round(money.NonNegative(p.EligibleExpenditure))
		for label, amount := range p.eligibleByYear {
			p.eligibleByYear[label] = money.NonNegative(amount)
		}
	}
	return projects
}

// assess applies the four-criterion test to a project, weighting every
// transaction by its dollar value rather than counting transactions.
func (p *Project) assess() {
	met := make(map[models.Criterion]decimal.Decimal, len(models.Criteria))
	weightedConfidence := decimal.Zero
	var evidence []string
	seen := make(map[string]bool)

	for _, t := range p.txs {
		amount := Expenditure(t)
		weightedConfidence = weightedConfidence.Add(amount.Mul(decimal.NewFromInt(int64(t.Confidence))))
		for _, c := range models.Criteria {
			r := t.RnD.Criteria.Get(c)
			if r.Met {
				met[c] = met[c].Add(amount)
			}
			for _, e := range r.Evidence {
				e = strings.TrimSpace(e)
				if e == "" || seen[e] {
					continue
				}
				seen[e] = true
				evidence = append(evidence, e)
			}
		}
	}

	total := p.TotalExpenditure
	p.Criteria = make([]CriterionScore, 0, len(models.Criteria))
	for _, c := range models.Criteria {
		ratio := money.Div(met[c], total)
		p.Criteria = append(p.Criteria, CriterionScore{
			Criterion: c,
			PassRatio: ratio.Round(4),
			Met:       !ratio.LessThan(CriterionThreshold),
		})
	}

	p.confidence = money.Div(weightedConfidence, total)
	if len(evidence) < MinEvidenceItems && p.confidence.GreaterThan(decimal.NewFromInt(LowEvidenceCeiling)) {
		p.confidence = decimal.NewFromInt(LowEvidenceCeiling)
	}
	p.Confidence = int(p.confidence.Round(0).IntPart())
	if evidence == nil {
		evidence = []string{}
	}
	p.Evidence = evidence
	p.Eligibility = p.eligibility()
}

func (p *Project) eligibility() models.Eligibility {
	var reasons []models.Reason
	for _, s := range p.Criteria {
		if s.Met {
			continue
		}
		reasons = append(reasons, models.Reason{
			Code: ReasonCriterionNotMet,
			Message: fmt.Sprintf("%s met by %s%% of project expenditure, below the %s%% threshold",
				s.Criterion, s.PassRatio.Mul(decimal.NewFromInt(100)).StringFixed(2), CriterionThreshold.Mul(decimal.NewFromInt(100)).String()),
		})
	}
	if !p.EligibleExpenditure.IsPositive() {
		reasons = append(reasons, models.Reason{
			Code:    ReasonNoEligibleExpenditure,
			Message: "no transactions in the project were assessed as eligible expenditure",
		})
	}
	if len(p.Evidence) < MinEvidenceItems {
		reasons = append(reasons, models.Reason{
			Code:    ReasonInsufficientEvidence,
			Message: fmt.Sprintf("%d unique evidence items, at least %d required", len(p.Evidence), MinEvidenceItems),
		})
	}
	if p.confidence.LessThan(decimal.NewFromInt(MinConfidence)) {
		reasons = append(reasons, models.Reason{
			Code:    ReasonLowConfidence,
			Message: fmt.Sprintf("confidence %s is below the minimum of %d", p.confidence.StringFixed(1), MinConfidence),
		})
	}
	if len(reasons) > 0 {
		return models.Excluded{Reasons: reasons}
	}
	return models.Eligible{}
}

// sortProjects orders by total expenditure descending, then key.
func sortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if c := projects[i].TotalExpenditure.Cmp(projects[j].TotalExpenditure); c != 0 {
			return c > 0
		}
		return projects[i].Key < projects[j].Key
	})
}

// Expenditure is the amount a transaction adds to project spend. Supplier
// credit notes and refunds are negative so they net against the invoices
// they reverse. Transactions without a type code count at face value.
func Expenditure(t models.ClassifiedTransaction) decimal.Decimal {
	if signed, ok := t.SignedAmount(); ok {
		return signed.Neg()
	}
	return t.Amount.Abs()
}
