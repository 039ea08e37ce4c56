// Package csvparse imports classified-transaction CSV exports.
package csvparse

import (
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/shopspring/decimal"
)

// Column headers, matched case-insensitively.
const (
	colTenant          = "tenant id"
	colTransactionID   = "transaction id"
	colFinancialYear   = "financial year"
	colDate            = "date"
	colAmount          = "amount"
	colDescription     = "description"
	colSupplier        = "supplier"
	colCategory        = "category"
	colType            = "type"
	colConfidence      = "confidence"
	colRnDCandidate    = "r&d candidate"
	colRnDEligible     = "r&d eligible"
	colDeductible      = "deductible"
	colDeductionType   = "deduction type"
	colDivision7A      = "division 7a risk"
	colFBT             = "fbt implication"
	colAcquisitionDate = "acquisition date"
	colCostBase        = "cost base"
)

// criterionColumns maps each R&D criterion to its column prefix. Each prefix takes
// " met", " confidence" and " evidence" suffixes; evidence items are separated by "|".
var criterionColumns = []struct {
	criterion models.Criterion
	prefix    string
}{
	{models.CriterionOutcomeUnknown, "outcome unknown"},
	{models.CriterionSystematicApproach, "systematic approach"},
	{models.CriterionNewKnowledge, "new knowledge"},
	{models.CriterionScientificMethod, "scientific method"},
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", time.RFC3339}

var knownTypes = map[models.TransactionType]bool{
	models.TypeReceivable:       true,
	models.TypePayable:          true,
	models.TypeReceivableCredit: true,
	models.TypePayableCredit:    true,
	models.TypeBank:             true,
	models.TypeSpend:            true,
	models.TypeReceive:          true,
}

// ParseCSV parses classified transactions from a CSV string.
// It returns the valid transactions and an error message for each invalid row.
func ParseCSV(content string) ([]models.ClassifiedTransaction, []string) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, []string{fmt.Sprintf("Failed to read CSV: %v", err)}
	}

	if len(records) < 2 {
		return []models.ClassifiedTransaction{}, nil // Empty or header-only
	}

	headers := parseHeaders(records[0])
	for _, required := range []string{colTenant, colDate, colAmount} {
		if !slices.Contains(headers, required) {
			return nil, []string{fmt.Sprintf("Missing required column %q", required)}
		}
	}

	transactions := []models.ClassifiedTransaction{}
	var errors []string

	for i, record := range records[1:] {
		rowNum := i + 2
		if len(record) < len(headers) {
			errors = append(errors, fmt.Sprintf("Row %d: Not enough fields", rowNum))
			continue
		}

		row := make(map[string]string, len(headers))
		for j, header := range headers {
			row[header] = strings.TrimSpace(record[j])
		}

		t, err := mapToTransaction(row)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		transactions = append(transactions, t)
	}

	return transactions, errors
}

func parseHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return headers
}

func mapToTransaction(row map[string]string) (models.ClassifiedTransaction, error) {
	var t models.ClassifiedTransaction

	t.TenantID = row[colTenant]
	if t.TenantID == "" {
		return t, fmt.Errorf("missing Tenant ID")
	}

	date, err := parseDate(row[colDate])
	if err != nil {
		return t, fmt.Errorf("invalid Date: %w", err)
	}
	if date.IsZero() {
		return t, fmt.Errorf("missing Date")
	}
	t.Date = date

	amountStr := row[colAmount]
	if amountStr == "" {
		return t, fmt.Errorf("missing Amount")
	}
	t.Amount, err = decimal.NewFromString(strings.ReplaceAll(amountStr, ",", ""))
	if err != nil {
		return t, fmt.Errorf("invalid Amount: %s", amountStr)
	}

	if fy := row[colFinancialYear]; fy != "" {
		if _, err := fiscal.Parse(fy); err != nil {
			return t, err
		}
		t.FinancialYear = fy
	}

	t.TransactionID = row[colTransactionID]
	t.Description = row[colDescription]
	t.SupplierName = row[colSupplier]
	t.Category = models.Category(row[colCategory])

	if typ := strings.ToUpper(row[colType]); typ != "" {
		t.TransactionType = models.TransactionType(typ)
		if !knownTypes[t.TransactionType] {
			return t, fmt.Errorf("invalid Type: %s", row[colType])
		}
	}

	if t.Confidence, err = parseConfidence(row[colConfidence]); err != nil {
		return t, fmt.Errorf("invalid Confidence: %w", err)
	}

	flags := []struct {
		col string
		dst *bool
	}{
		{colRnDCandidate, &t.RnD.Candidate},
		{colRnDEligible, &t.RnD.Eligible},
		{colDeductible, &t.Deduction.Deductible},
		{colDivision7A, &t.Compliance.Division7ARisk},
		{colFBT, &t.Compliance.FBTImplication},
	}
	for _, f := range flags {
		if *f.dst, err = parseBool(row[f.col]); err != nil {
			return t, fmt.Errorf("invalid %s: %w", f.col, err)
		}
	}
	t.Deduction.Type = row[colDeductionType]

	for _, c := range criterionColumns {
		result, err := parseCriterion(row, c.prefix)
		if err != nil {
			return t, err
		}
		t.RnD.Criteria.Set(c.criterion, result)
	}

	if t.AcquisitionDate, err = parseDate(row[colAcquisitionDate]); err != nil {
		return t, fmt.Errorf("invalid Acquisition Date: %w", err)
	}

	if cb := row[colCostBase]; cb != "" {
		costBase, err := decimal.NewFromString(strings.ReplaceAll(cb, ",", ""))
		if err != nil {
			return t, fmt.Errorf("invalid Cost Base: %s", cb)
		}
		t.CostBase = &costBase
	}

	return t, nil
}

func parseCriterion(row map[string]string, prefix string) (models.CriterionResult, error) {
	var r models.CriterionResult
	var err error
	if r.Met, err = parseBool(row[prefix+" met"]); err != nil {
		return r, fmt.Errorf("invalid %s met: %w", prefix, err)
	}
	if r.Confidence, err = parseConfidence(row[prefix+" confidence"]); err != nil {
		return r, fmt.Errorf("invalid %s confidence: %w", prefix, err)
	}
	for _, item := range strings.Split(row[prefix+" evidence"], "|") {
		if item = strings.TrimSpace(item); item != "" {
			r.Evidence = append(r.Evidence, item)
		}
	}
	return r, nil
}

// parseDate accepts ISO and day-first dates. An empty string is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "n", "no", "false":
		return false, nil
	case "1", "y", "yes", "true":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func parseConfidence(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%d is outside 0-100", n)
	}
	return n, nil
}
