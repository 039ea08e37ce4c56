// Package summary assembles the shared parts of analyzer summaries.
package summary

import (
	"sort"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/shopspring/decimal"
)

// Reference cites the statutory rule behind a figure.
type Reference struct {
	Citation string `json:"citation"`
	Topic    string `json:"topic"`
}

// RateVerification is kept apart from every computed figure. It is the only
// part of a summary that may differ between identical runs, since the same
// rate values may be served from a different source on each call.
type RateVerification struct {
	Sources    map[string]rates.Source `json:"sources"`
	VerifiedAt time.Time               `json:"verifiedAt"`
}

// Metadata is embedded in every analyzer summary.
type Metadata struct {
	TenantID              string           `json:"tenantId"`
	LegislativeReferences []Reference      `json:"legislativeReferences"`
	Recommendations       []string         `json:"recommendations"`
	Warnings              []string         `json:"warnings"`
	RateVerification      RateVerification `json:"rateVerification"`
}

// Builder collects metadata while an analyzer runs. Entries are deduplicated
// and kept in insertion order.
type Builder struct {
	tenantID        string
	references      []Reference
	seenReferences  map[string]bool
	recommendations []string
	seenRecs        map[string]bool
	warnings        []string
	seenWarnings    map[string]bool
}

// NewBuilder creates a Builder for a tenant.
func NewBuilder(tenantID string) *Builder {
	return &Builder{
		tenantID:       tenantID,
		seenReferences: make(map[string]bool),
		seenRecs:       make(map[string]bool),
		seenWarnings:   make(map[string]bool),
	}
}

// Cite records a legislative reference.
func (b *Builder) Cite(citation, topic string) {
	if b.seenReferences[citation] {
		return
	}
	b.seenReferences[citation] = true
	b.references = append(b.references, Reference{Citation: citation, Topic: topic})
}

// Recommend records a recommendation.
func (b *Builder) Recommend(rec string) {
	if rec == "" || b.seenRecs[rec] {
		return
	}
	b.seenRecs[rec] = true
	b.recommendations = append(b.recommendations, rec)
}

// Warn records a warning.
func (b *Builder) Warn(w string) {
	if w == "" || b.seenWarnings[w] {
		return
	}
	b.seenWarnings[w] = true
	b.warnings = append(b.warnings, w)
}

// Build produces the metadata, stamping rate sources and verification time.
func (b *Builder) Build(r rates.Rates) Metadata {
	sources := make(map[string]rates.Source, len(r.Sources))
	for k, v := range r.Sources {
		sources[k] = v
	}
	return Metadata{
		TenantID:              b.tenantID,
		LegislativeReferences: nonNil(b.references),
		Recommendations:       nonNil(b.recommendations),
		Warnings:              nonNil(b.warnings),
		RateVerification:      RateVerification{Sources: sources, VerifiedAt: r.VerifiedAt},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// YearTotals accumulates decimal amounts per financial-year label.
type YearTotals struct {
	totals map[string]decimal.Decimal
}

// NewYearTotals creates an empty accumulator.
func NewYearTotals() *YearTotals {
	return &YearTotals{totals: make(map[string]decimal.Decimal)}
}

// Add adds amount to the total for label.
func (y *YearTotals) Add(label string, amount decimal.Decimal) {
	y.totals[label] = y.totals[label].Add(amount)
}

// Get returns the total for label.
func (y *YearTotals) Get(label string) decimal.Decimal {
	return y.totals[label]
}

// Labels returns the accumulated labels in chronological order.
// FY labels share a fixed-width format, so lexical order is chronological.
func (y *YearTotals) Labels() []string {
	labels := make([]string, 0, len(y.totals))
	for l := range y.totals {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// OverallRisk rolls item risk levels up: any high makes the whole high;
// otherwise more than 30% medium makes it medium; otherwise low.
func OverallRisk(levels []models.RiskLevel) models.RiskLevel {
	if len(levels) == 0 {
		return models.RiskLow
	}
	medium := 0
	for _, l := range levels {
		switch l {
		case models.RiskHigh:
			return models.RiskHigh
		case models.RiskMedium:
			medium++
		}
	}
	// medium/len > 0.3 without floating point
	if medium*10 > len(levels)*3 {
		return models.RiskMedium
	}
	return models.RiskLow
}
