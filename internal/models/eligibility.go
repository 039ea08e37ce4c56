package models

import (
	"encoding/json"
)

// RiskLevel grades how exposed a reported position is to challenge.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels for comparisons.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	}
	return 0
}

// EligibilityStatus is the discriminator of an Eligibility value.
type EligibilityStatus string

const (
	StatusEligible EligibilityStatus = "eligible"
	StatusExcluded EligibilityStatus = "excluded"
	StatusUnknown  EligibilityStatus = "unknown"
)

// Eligibility is a closed sum type: Eligible, Excluded or Unknown.
// Consumers switch on the concrete type and must handle all three.
type Eligibility interface {
	Status() EligibilityStatus
	sealed()
}

// Reason is a structured explanation attached to an excluded item.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Eligible marks an item that passed every test.
type Eligible struct{}

// Excluded marks an item that failed one or more tests.
type Excluded struct {
	Reasons []Reason
}

// Unknown marks an item whose eligibility cannot be determined from the data.
type Unknown struct {
	RiskLevel  RiskLevel
	Confidence int
	Reason     string
}

func (Eligible) Status() EligibilityStatus { return StatusEligible }
func (Excluded) Status() EligibilityStatus { return StatusExcluded }
func (Unknown) Status() EligibilityStatus  { return StatusUnknown }

func (Eligible) sealed() {}
func (Excluded) sealed() {}
func (Unknown) sealed()  {}

func (e Eligible) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status EligibilityStatus `json:"status"`
	}{e.Status()})
}

func (e Excluded) MarshalJSON() ([]byte, error) {
	reasons := e.Reasons
	if reasons == nil {
		reasons = []Reason{}
	}
	return json.Marshal(struct {
		Status  EligibilityStatus `json:"status"`
		Reasons []Reason          `json:"reasons"`
	}{e.Status(), reasons})
}

func (e Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status     EligibilityStatus `json:"status"`
		RiskLevel  RiskLevel         `json:"riskLevel"`
		Confidence int               `json:"confidence"`
		Reason     string            `json:"reason"`
	}{e.Status(), e.RiskLevel, e.Confidence, e.Reason})
}
