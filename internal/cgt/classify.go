package cgt

import (
	"strings"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
)

// AssetCategory groups disposed assets for loss quarantining.
type AssetCategory string

const (
	Collectable AssetCategory = "collectable"
	PersonalUse AssetCategory = "personal_use"
	Other       AssetCategory = "other"
)

var (
	disposalCategoryKeywords    = []string{"disposal", "asset sale", "capital gain", "cgt"}
	disposalDescriptionKeywords = []string{"disposal", "disposed", "sale of", "sold"}

	collectableKeywords = []string{
		"artwork", "painting", "sculpture", "jewellery", "jewelry",
		"stamp", "wine", "coin", "antique", "rare book",
	}
	personalUseKeywords = []string{"boat", "yacht", "caravan", "furniture"}
)

// IsDisposal reports whether a transaction looks like a CGT event.
func IsDisposal(t models.ClassifiedTransaction) bool {
	return containsAny(strings.ToLower(string(t.Category)), disposalCategoryKeywords) ||
		containsAny(strings.ToLower(t.Description), disposalDescriptionKeywords)
}

// Categorize assigns an asset category from the description. Collectable
// keywords win over personal-use keywords.
func Categorize(description string) AssetCategory {
	d := strings.ToLower(description)
	switch {
	case containsAny(d, collectableKeywords):
		return Collectable
	case containsAny(d, personalUseKeywords):
		return PersonalUse
	default:
		return Other
	}
}

// HoldingMonths counts whole months from acquired to disposed. It is zero
// when either date is missing or disposal precedes acquisition.
func HoldingMonths(acquired, disposed time.Time) int {
	if acquired.IsZero() || disposed.IsZero() {
		return 0
	}
	a, d := acquired.UTC(), disposed.UTC()
	months := (d.Year()-a.Year())*12 + int(d.Month()) - int(a.Month())
	if d.Day() < a.Day() {
		months--
	}
	return max(months, 0)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
