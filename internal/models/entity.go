package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EntityType is the legal form of the taxpayer.
type EntityType string

const (
	EntityIndividual  EntityType = "individual"
	EntityCompany     EntityType = "company"
	EntityTrust       EntityType = "trust"
	EntityPartnership EntityType = "partnership"
	EntitySuperFund   EntityType = "super_fund"
	EntityUnknown     EntityType = "unknown"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityIndividual, EntityCompany, EntityTrust, EntityPartnership, EntitySuperFund, EntityUnknown:
		return true
	}
	return false
}

// ConnectedEntity is an affiliate or connected entity whose net assets
// count towards the maximum net asset value test.
type ConnectedEntity struct {
	Name      string          `json:"name"`
	NetAssets decimal.Decimal `json:"netAssets"`
}

// ContinuityEvidence records what is known about ownership and business continuity.
type ContinuityEvidence struct {
	OwnershipMaintained bool `json:"ownershipMaintained"`
	SameBusiness        bool `json:"sameBusiness"`
}

// EntityContext describes the taxpayer. Every field is optional. Turnover and
// net assets are pointers because a missing value must not read as $0, which
// would pass every small business threshold.
type EntityContext struct {
	EntityType              EntityType          `json:"entityType"`
	AggregatedTurnover      *decimal.Decimal    `json:"aggregatedTurnover,omitempty"`
	CorporateRate           decimal.Decimal     `json:"corporateRate"` // Zero means resolve from turnover
	NetAssetValue           *decimal.Decimal    `json:"netAssetValue,omitempty"`
	ActiveAssetPercentage   decimal.Decimal     `json:"activeAssetPercentage"`
	YearsOfOwnership        int                 `json:"yearsOfOwnership"`
	RetirementExemptionUsed decimal.Decimal     `json:"retirementExemptionUsed"`
	ConnectedEntities       []ConnectedEntity   `json:"connectedEntities,omitempty"`
	PriorRevenueLosses      decimal.Decimal     `json:"priorRevenueLosses"`
	PriorCapitalLosses      decimal.Decimal     `json:"priorCapitalLosses"`
	Continuity              *ContinuityEvidence `json:"continuity,omitempty"`
}

// Type returns the entity type, treating a nil context or empty type as unknown.
func (e *EntityContext) Type() EntityType {
	if e == nil || e.EntityType == "" {
		return EntityUnknown
	}
	return e.EntityType
}

// Turnover returns the aggregated turnover and whether it was supplied.
func (e *EntityContext) Turnover() (decimal.Decimal, bool) {
	if e == nil || e.AggregatedTurnover == nil {
		return decimal.Zero, false
	}
	return *e.AggregatedTurnover, true
}

// NetAssets returns the entity's own net asset value and whether it was supplied.
func (e *EntityContext) NetAssets() (decimal.Decimal, bool) {
	if e == nil || e.NetAssetValue == nil {
		return decimal.Zero, false
	}
	return *e.NetAssetValue, true
}

// ConnectedAssets sums the net assets of connected entities.
func (e *EntityContext) ConnectedAssets() decimal.Decimal {
	total := decimal.Zero
	if e == nil {
		return total
	}
	for _, c := range e.ConnectedEntities {
		total = total.Add(c.NetAssets)
	}
	return total
}

// Validate checks the context for values no analyzer can work with.
// A nil context is valid.
func (e *EntityContext) Validate() error {
	if e == nil {
		return nil
	}
	if e.EntityType != "" && !e.EntityType.Valid() {
		return NewValidationError("entity type", string(e.EntityType), "unsupported entity type")
	}

	turnover, _ := e.Turnover()
	netAssets, _ := e.NetAssets()
	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"aggregated turnover", turnover},
		{"corporate rate", e.CorporateRate},
		{"net asset value", netAssets},
		{"retirement exemption used", e.RetirementExemptionUsed},
		{"prior revenue losses", e.PriorRevenueLosses},
		{"prior capital losses", e.PriorCapitalLosses},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return NewValidationError(a.field, a.value.String(), "must not be negative")
		}
	}

	if e.CorporateRate.GreaterThan(decimal.NewFromInt(1)) {
		return NewValidationError("corporate rate", e.CorporateRate.String(), "must be a ratio between 0 and 1")
	}
	if e.ActiveAssetPercentage.IsNegative() || e.ActiveAssetPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return NewValidationError("active asset percentage", e.ActiveAssetPercentage.String(), "must be between 0 and 100")
	}
	if e.YearsOfOwnership < 0 {
		return NewValidationError("years of ownership", fmt.Sprint(e.YearsOfOwnership), "must not be negative")
	}
	for _, c := range e.ConnectedEntities {
		if c.NetAssets.IsNegative() {
			return NewValidationError("connected entity net assets", c.Name, "must not be negative")
		}
	}
	return nil
}
