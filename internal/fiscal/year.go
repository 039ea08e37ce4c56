// Package fiscal handles Australian financial-year labels (1 July to 30 June).
package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
)

// Year identifies a financial year by the calendar year it starts in.
// FY2024-25 has Start 2024 and runs 1 July 2024 to 30 June 2025.
type Year struct {
	Start int
}

// Parse reads labels of the form "FY2024-25" or "2024-25".
func Parse(label string) (Year, error) {
	s := strings.TrimSpace(label)
	s = strings.TrimPrefix(strings.ToUpper(s), "FY")

	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return Year{}, invalid(label, "expected FYYYYY-YY")
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return Year{}, invalid(label, "start year is not numeric")
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return Year{}, invalid(label, "end year is not numeric")
	}
	if (start+1)%100 != end {
		return Year{}, invalid(label, "end year must follow start year")
	}
	return Year{Start: start}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(label string) Year {
	y, err := Parse(label)
	if err != nil {
		panic(err)
	}
	return y
}

func invalid(label, reason string) error {
	return &models.ValidationError{
		Field:  "financial year",
		Value:  label,
		Reason: reason,
		Err:    models.ErrInvalidFinancialYear,
	}
}

// ForDate returns the financial year containing t.
func ForDate(t time.Time) Year {
	if t.Month() >= time.July {
		return Year{Start: t.Year()}
	}
	return Year{Start: t.Year() - 1}
}

// Label formats the year as "FY2024-25".
func (y Year) Label() string {
	return fmt.Sprintf("FY%04d-%02d", y.Start, (y.Start+1)%100)
}

func (y Year) String() string {
	return y.Label()
}

// StartDate is 1 July of the starting year.
func (y Year) StartDate() time.Time {
	return time.Date(y.Start, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// EndDate is 30 June of the following year.
func (y Year) EndDate() time.Time {
	return time.Date(y.Start+1, time.June, 30, 0, 0, 0, 0, time.UTC)
}

// Next returns the following financial year.
func (y Year) Next() Year {
	return Year{Start: y.Start + 1}
}

// Prev returns the preceding financial year.
func (y Year) Prev() Year {
	return Year{Start: y.Start - 1}
}

// Before reports whether y precedes other.
func (y Year) Before(other Year) bool {
	return y.Start < other.Start
}

// Range returns every year from..to inclusive.
func Range(from, to string) ([]Year, error) {
	start, err := Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &models.ValidationError{
			Field:  "financial year range",
			Value:  from + ".." + to,
			Reason: "end precedes start",
		}
	}

	var years []Year
	for y := start; !end.Before(y); y = y.Next() {
		years = append(years, y)
	}
	return years, nil
}

// Of returns a transaction's financial year, preferring its own label over its date.
func Of(t models.ClassifiedTransaction) (Year, error) {
	if t.FinancialYear != "" {
		return Parse(t.FinancialYear)
	}
	return ForDate(t.Date), nil
}
