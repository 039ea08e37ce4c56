package csvparse

import (
	"strings"
	"testing"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/shopspring/decimal"
)

const header = `Tenant ID,Transaction ID,Financial Year,Date,Amount,Description,Supplier,Category,Type,Confidence,R&D Candidate,Outcome Unknown Met,Outcome Unknown Confidence,Outcome Unknown Evidence,Acquisition Date,Cost Base`

func TestParseCSV_Valid(t *testing.T) {
	content := header + `
acme,tx-1,FY2024-25,2024-08-17,-12500.00,Prototype sensor build,LabCo,Research & Development,ACCPAY,85,yes,true,90,lab notebook|test plan,,
acme,tx-2,,15/03/2025,"250,000",Sale of warehouse,,Asset Disposal,receive,70,no,,,,2010-01-01,100000`

	transactions, errors := ParseCSV(content)

	if len(errors) != 0 {
		t.Fatalf("Expected no errors, got: %v", errors)
	}
	if len(transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(transactions))
	}

	t1 := transactions[0]
	if t1.TenantID != "acme" || t1.TransactionID != "tx-1" {
		t.Errorf("Unexpected ids: %s/%s", t1.TenantID, t1.TransactionID)
	}
	if !t1.Amount.Equal(decimal.NewFromInt(-12500)) {
		t.Errorf("Expected Amount -12500, got %s", t1.Amount)
	}
	if t1.Category != models.CategoryRnD {
		t.Errorf("Expected Category %q, got %q", models.CategoryRnD, t1.Category)
	}
	if !t1.RnD.Candidate {
		t.Error("Expected R&D candidate flag")
	}
	ou := t1.RnD.Criteria.OutcomeUnknown
	if !ou.Met || ou.Confidence != 90 || len(ou.Evidence) != 2 {
		t.Errorf("Unexpected outcome unknown criterion: %+v", ou)
	}

	t2 := transactions[1]
	if !t2.Date.Equal(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected day-first date, got %s", t2.Date)
	}
	if t2.TransactionType != models.TypeReceive {
		t.Errorf("Expected type RECEIVE, got %s", t2.TransactionType)
	}
	if !t2.Amount.Equal(decimal.NewFromInt(250000)) {
		t.Errorf("Expected thousands separators to be stripped, got %s", t2.Amount)
	}
	if t2.CostBase == nil || !t2.CostBase.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Expected cost base 100000, got %v", t2.CostBase)
	}
	if t2.AcquisitionDate.Year() != 2010 {
		t.Errorf("Expected acquisition date in 2010, got %s", t2.AcquisitionDate)
	}
}

func TestParseCSV_Whitespace(t *testing.T) {
	content := ` Tenant ID , Date , Amount , Description
 acme , 2024-08-17 , 42.5 , Consumables `

	transactions, errors := ParseCSV(content)

	if len(errors) != 0 {
		t.Fatalf("Expected no errors, got: %v", errors)
	}
	if len(transactions) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Description != "Consumables" {
		t.Errorf("Expected Description 'Consumables', got '%s'", transactions[0].Description)
	}
}

func TestParseCSV_RowErrors(t *testing.T) {
	content := `Tenant ID,Date,Amount,Financial Year,Type,Confidence
acme,2024-08-17,42.5,,,
acme,bad-date,10.0,,,
acme,2024-08-17,bad,,,
acme,2024-08-17,1,FY24,,
acme,2024-08-17,1,,WIRE,
acme,2024-08-17,1,,,140
,2024-08-17,1,,,
acme,2024-08-17`

	transactions, errors := ParseCSV(content)

	if len(transactions) != 1 {
		t.Errorf("Expected 1 valid transaction, got %d", len(transactions))
	}
	if len(errors) != 7 {
		t.Fatalf("Expected 7 errors, got %d: %v", len(errors), errors)
	}
	if !strings.HasPrefix(errors[0], "Row 3:") {
		t.Errorf("Expected row number in error, got %q", errors[0])
	}
}

func TestParseCSV_MissingRequiredColumn(t *testing.T) {
	content := `Date,Amount
2024-08-17,42.5`

	transactions, errors := ParseCSV(content)

	if len(transactions) != 0 {
		t.Errorf("Expected 0 transactions, got %d", len(transactions))
	}
	if len(errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(errors))
	}
}

func TestParseCSV_Empty(t *testing.T) {
	transactions, errors := ParseCSV("")

	if len(transactions) != 0 {
		t.Errorf("Expected 0 transactions, got %d", len(transactions))
	}
	if len(errors) != 0 {
		t.Errorf("Expected 0 errors, got %d", len(errors))
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	transactions, errors := ParseCSV(header)

	if len(transactions) != 0 {
		t.Errorf("Expected 0 transactions, got %d", len(transactions))
	}
	if len(errors) != 0 {
		t.Errorf("Expected 0 errors, got %d", len(errors))
	}
}
