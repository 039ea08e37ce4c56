package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CriterionResult is the classifier's verdict on one R&D criterion for a transaction.
type CriterionResult struct {
	Met        bool     `json:"met"`
	Confidence int      `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
}

// FourCriteria holds the four-criterion R&D test sub-results.
type FourCriteria struct {
	OutcomeUnknown     CriterionResult `json:"outcomeUnknown"`
	SystematicApproach CriterionResult `json:"systematicApproach"`
	NewKnowledge       CriterionResult `json:"newKnowledge"`
	ScientificMethod   CriterionResult `json:"scientificMethod"`
}

// Criterion names the four R&D criteria in a fixed order.
type Criterion string

const (
	CriterionOutcomeUnknown     Criterion = "outcome_unknown"
	CriterionSystematicApproach Criterion = "systematic_approach"
	CriterionNewKnowledge       Criterion = "new_knowledge"
	CriterionScientificMethod   Criterion = "scientific_method"
)

// Criteria lists the four criteria in reporting order.
var Criteria = []Criterion{
	CriterionOutcomeUnknown,
	CriterionSystematicApproach,
	CriterionNewKnowledge,
	CriterionScientificMethod,
}

// Get returns the result for the named criterion.
func (f FourCriteria) Get(c Criterion) CriterionResult {
	switch c {
	case CriterionOutcomeUnknown:
		return f.OutcomeUnknown
	case CriterionSystematicApproach:
		return f.SystematicApproach
	case CriterionNewKnowledge:
		return f.NewKnowledge
	case CriterionScientificMethod:
		return f.ScientificMethod
	}
	return CriterionResult{}
}

// Set stores the result for the named criterion.
func (f *FourCriteria) Set(c Criterion, r CriterionResult) {
	switch c {
	case CriterionOutcomeUnknown:
		f.OutcomeUnknown = r
	case CriterionSystematicApproach:
		f.SystematicApproach = r
	case CriterionNewKnowledge:
		f.NewKnowledge = r
	case CriterionScientificMethod:
		f.ScientificMethod = r
	}
}

// RnDAssessment carries the classifier's R&D flags.
type RnDAssessment struct {
	Candidate bool         `json:"candidate"`
	Eligible  bool         `json:"eligible"`
	Criteria  FourCriteria `json:"criteria"`
}

// Deduction carries the classifier's deductibility flags.
type Deduction struct {
	Deductible bool   `json:"deductible"`
	Type       string `json:"type,omitempty"`
}

// Compliance carries compliance flags raised by the classifier.
type Compliance struct {
	Division7ARisk bool `json:"division7aRisk"`
	FBTImplication bool `json:"fbtImplication"`
}

// ClassifiedTransaction is one transaction after upstream categorization.
// The engine treats it as read-only input.
type ClassifiedTransaction struct {
	TenantID        string           `json:"tenantId"`
	TransactionID   string           `json:"transactionId"`
	FinancialYear   string           `json:"financialYear"`
	Date            time.Time        `json:"date"`
	Amount          decimal.Decimal  `json:"amount"`
	Description     string           `json:"description"`
	SupplierName    string           `json:"supplierName"`
	Category        Category         `json:"category"`
	TransactionType TransactionType  `json:"transactionType"`
	Confidence      int              `json:"confidence"`
	RnD             RnDAssessment    `json:"rnd"`
	Deduction       Deduction        `json:"deduction"`
	Compliance      Compliance       `json:"compliance"`
	AcquisitionDate time.Time        `json:"acquisitionDate,omitzero"`
	CostBase        *decimal.Decimal `json:"costBase,omitempty"`
}

// SignedAmount maps a transaction to its effect on profit using its type code.
// Credit notes reverse the invoice they relate to; bank movements keep their
// sign. ok is false for type codes that carry no profit information.
func (t ClassifiedTransaction) SignedAmount() (decimal.Decimal, bool) {
	abs := t.Amount.Abs()
	switch t.TransactionType {
	case TypeReceivable, TypePayableCredit:
		return abs, true
	case TypePayable, TypeReceivableCredit:
		return abs.Neg(), true
	case TypeBank, TypeSpend, TypeReceive:
		return t.Amount, true
	default:
		return decimal.Zero, false
	}
}

// Less orders transactions by date, then transaction id.
func (t ClassifiedTransaction) Less(other ClassifiedTransaction) bool {
	if !t.Date.Equal(other.Date) {
		return t.Date.Before(other.Date)
	}
	return t.TransactionID < other.TransactionID
}

// CheckTenant verifies all transactions belong to a single tenant.
func CheckTenant(txs []ClassifiedTransaction) error {
	tenant := ""
	for _, t := range txs {
		id := strings.TrimSpace(t.TenantID)
		if id == "" {
			return NewValidationError("tenant id", t.TransactionID, "transaction has no tenant")
		}
		if tenant == "" {
			tenant = id
			continue
		}
		if id != tenant {
			return NewValidationError("tenant id", id, "transactions span more than one tenant")
		}
	}
	return nil
}
