package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestEntityContext_Validate(t *testing.T) {
	var nilCtx *EntityContext
	assert.NoError(t, nilCtx.Validate())
	assert.Equal(t, EntityUnknown, nilCtx.Type())

	ok := &EntityContext{
		EntityType:            EntityCompany,
		AggregatedTurnover:    amount(1_000_000),
		ActiveAssetPercentage: decimal.NewFromInt(80),
	}
	assert.NoError(t, ok.Validate())

	cases := []*EntityContext{
		{EntityType: "sole_trader"},
		{AggregatedTurnover: amount(-1)},
		{NetAssetValue: amount(-1)},
		{CorporateRate: decimal.NewFromFloat(1.5)},
		{ActiveAssetPercentage: decimal.NewFromInt(101)},
		{YearsOfOwnership: -3},
		{PriorRevenueLosses: decimal.NewFromInt(-100)},
		{ConnectedEntities: []ConnectedEntity{{Name: "HoldCo", NetAssets: decimal.NewFromInt(-5)}}},
	}
	for i, c := range cases {
		err := c.Validate()
		require.Error(t, err, "case %d", i)
		assert.True(t, errors.Is(err, ErrValidation), "case %d", i)
	}
}

func TestEntityContext_OptionalAmounts(t *testing.T) {
	var nilCtx *EntityContext
	_, known := nilCtx.Turnover()
	assert.False(t, known)

	var e EntityContext
	require.NoError(t, json.Unmarshal([]byte(`{"entityType":"company"}`), &e))
	_, known = e.Turnover()
	assert.False(t, known, "absent turnover must not read as zero")
	_, known = e.NetAssets()
	assert.False(t, known)

	require.NoError(t, json.Unmarshal([]byte(`{"aggregatedTurnover":0,"netAssetValue":"2500000"}`), &e))
	turnover, known := e.Turnover()
	assert.True(t, known)
	assert.True(t, turnover.IsZero())
	netAssets, known := e.NetAssets()
	assert.True(t, known)
	assert.True(t, netAssets.Equal(decimal.NewFromInt(2_500_000)))
}

func TestEntityContext_ConnectedAssets(t *testing.T) {
	e := &EntityContext{ConnectedEntities: []ConnectedEntity{
		{Name: "A", NetAssets: decimal.NewFromInt(1_000_000)},
		{Name: "B", NetAssets: decimal.NewFromInt(500_000)},
	}}
	assert.True(t, e.ConnectedAssets().Equal(decimal.NewFromInt(1_500_000)))
}

func TestClassifiedTransaction_SignedAmount(t *testing.T) {
	tests := []struct {
		txType TransactionType
		amount int64
		want   int64
		ok     bool
	}{
		{TypeReceivable, -100, 100, true},
		{TypePayable, 100, -100, true},
		{TypeReceivableCredit, 100, -100, true},
		{TypePayableCredit, -100, 100, true},
		{TypeSpend, -100, -100, true},
		{TypeReceive, 100, 100, true},
		{"", 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.txType), func(t *testing.T) {
			tx := ClassifiedTransaction{TransactionType: tt.txType, Amount: decimal.NewFromInt(tt.amount)}
			got, ok := tx.SignedAmount()
			assert.Equal(t, tt.ok, ok)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), got.String())
		})
	}
}

func TestCheckTenant(t *testing.T) {
	assert.NoError(t, CheckTenant(nil))
	assert.NoError(t, CheckTenant([]ClassifiedTransaction{{TenantID: "t1"}, {TenantID: "t1"}}))

	err := CheckTenant([]ClassifiedTransaction{{TenantID: "t1"}, {TenantID: "t2"}})
	assert.True(t, errors.Is(err, ErrValidation))

	err = CheckTenant([]ClassifiedTransaction{{TransactionID: "x"}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTransactionLess(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := ClassifiedTransaction{TransactionID: "a", Date: d}
	b := ClassifiedTransaction{TransactionID: "b", Date: d}
	c := ClassifiedTransaction{TransactionID: "0", Date: d.AddDate(0, 0, 1)}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}

func TestEligibility_MarshalJSON(t *testing.T) {
	items := []Eligibility{
		Eligible{},
		Excluded{Reasons: []Reason{{Code: "low_confidence", Message: "confidence 40 below 70"}}},
		Unknown{RiskLevel: RiskMedium, Confidence: 50, Reason: "no ownership data"},
	}

	out, err := json.Marshal(items)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"status":"eligible"},
		{"status":"excluded","reasons":[{"code":"low_confidence","message":"confidence 40 below 70"}]},
		{"status":"unknown","riskLevel":"medium","confidence":50,"reason":"no ownership data"}
	]`, string(out))
}

func TestFourCriteria_GetSet(t *testing.T) {
	var f FourCriteria
	for i, c := range Criteria {
		f.Set(c, CriterionResult{Met: true, Confidence: i})
	}
	for i, c := range Criteria {
		assert.True(t, f.Get(c).Met)
		assert.Equal(t, i, f.Get(c).Confidence)
	}
}

func TestRiskLevelRank(t *testing.T) {
	assert.Less(t, RiskLow.Rank(), RiskMedium.Rank())
	assert.Less(t, RiskMedium.Rank(), RiskHigh.Rank())
}
