package finboard

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKPIs() []KPI {
	return []KPI{{
		ID:            "k1",
		TotalExpenses: 100,
		ExpensesByCategory: ExpensesByCategory{
			Salaries: 60,
			Services: 25,
			Supplies: 15,
		},
		MonthlyData: []Month{
			{Month: "january", Revenue: 1000.10, Expenses: 400.05, OperationalExpenses: 300, NonOperationalExpenses: 100.05},
			{Month: "february", Revenue: 1200, Expenses: 500, OperationalExpenses: 350, NonOperationalExpenses: 150},
			{Month: "may", Revenue: 900.3, Expenses: 1000.1, OperationalExpenses: 800, NonOperationalExpenses: 200.1},
		},
	}}
}

// TestMonthLabel verifies truncation to three characters.
func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "jan", monthLabel("january"))
	assert.Equal(t, "may", monthLabel("may"))
	assert.Equal(t, "q1", monthLabel("q1"))
	assert.Equal(t, "", monthLabel(""))
	assert.Equal(t, "mär", monthLabel("märz"))
}

// TestViews_EmptyCollection verifies that every view tolerates an empty
// collection.
func TestViews_EmptyCollection(t *testing.T) {
	assert.Nil(t, MonthlyRevenue(nil))
	assert.Nil(t, RevenueExpenses([]KPI{}))
	assert.Nil(t, RevenueProfit(nil))
	assert.Nil(t, OperationalSplit(nil))
	assert.Nil(t, PriceExpense(nil))
	assert.Nil(t, ExpenseShares(nil))
	assert.Nil(t, RevenueSeries(nil))
}

// TestMonthlyRevenue verifies labels and values in document order.
func TestMonthlyRevenue(t *testing.T) {
	got := MonthlyRevenue(sampleKPIs())
	assert.Equal(t, []RevenuePoint{
		{Month: "jan", Revenue: 1000.10},
		{Month: "feb", Revenue: 1200},
		{Month: "may", Revenue: 900.3},
	}, got)
}

// TestRevenueExpenses verifies that both series are carried per month.
func TestRevenueExpenses(t *testing.T) {
	got := RevenueExpenses(sampleKPIs())
	require.Len(t, got, 3)
	assert.Equal(t, RevenueExpensesPoint{Month: "feb", Revenue: 1200, Expenses: 500}, got[1])
}

// TestRevenueProfit verifies exact cent arithmetic, including losses.
func TestRevenueProfit(t *testing.T) {
	got := RevenueProfit(sampleKPIs())
	require.Len(t, got, 3)

	assert.Equal(t, "600.05", got[0].Profit.StringFixed(2))
	assert.Equal(t, "700.00", got[1].Profit.StringFixed(2))
	assert.Equal(t, "-99.80", got[2].Profit.StringFixed(2))
	assert.True(t, got[2].Profit.Equal(decimal.RequireFromString("-99.8")))
}

// TestOperationalSplit verifies the per-month expense split.
func TestOperationalSplit(t *testing.T) {
	got := OperationalSplit(sampleKPIs())
	require.Len(t, got, 3)
	assert.Equal(t, OperationalPoint{Month: "jan", OperationalExpenses: 300, NonOperationalExpenses: 100.05}, got[0])
}

// TestPriceExpense verifies the per-product projection.
func TestPriceExpense(t *testing.T) {
	got := PriceExpense([]Product{
		{ID: "p1", Price: 10.5, Expense: 4, Transactions: []string{"t1"}},
		{ID: "p2", Price: 99, Expense: 120},
	})
	assert.Equal(t, []PriceExpensePoint{
		{ID: "p1", Price: 10.5, Expense: 4},
		{ID: "p2", Price: 99, Expense: 120},
	}, got)
}

// TestExpenseShares verifies each category is paired with the rest of the
// total.
func TestExpenseShares(t *testing.T) {
	got := ExpenseShares(sampleKPIs())
	require.Len(t, got, 3)

	assert.Equal(t, "salaries", got[0][0].Name)
	assert.True(t, got[0][0].Value.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "salaries of Total", got[0][1].Name)
	assert.True(t, got[0][1].Value.Equal(decimal.NewFromInt(40)))

	assert.Equal(t, "services", got[1][0].Name)
	assert.Equal(t, "supplies of Total", got[2][1].Name)
	assert.True(t, got[2][1].Value.Equal(decimal.NewFromInt(85)))

	zero := sampleKPIs()
	zero[0].TotalExpenses = 0
	assert.Nil(t, ExpenseShares(zero))
}

// TestRevenueSeries verifies conversion to forecaster input.
func TestRevenueSeries(t *testing.T) {
	got := RevenueSeries(sampleKPIs())
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, i, p.MonthIndex)
	}
	assert.Equal(t, "feb", got[1].Label)
	assert.Equal(t, 1200.0, got[1].Revenue)
}

// TestModels_BackendFieldNames verifies decoding of the backend's documents.
func TestModels_BackendFieldNames(t *testing.T) {
	raw := `[{
		"_id": "63bf7ac9f03239e002001600",
		"totalProfit": 212000,
		"totalRevenue": 2120000,
		"totalExpenses": 1908000,
		"expensesByCategory": {"salaries": 38000, "supplies": 13000, "services": 10000},
		"monthlyData": [{"_id": "m1", "month": "january", "revenue": 15000, "expenses": 10000,
			"operationalExpenses": 6500, "nonOperationalExpenses": 3500}],
		"dailyData": [{"_id": "d1", "date": "2021-01-01", "revenue": 500, "expenses": 300}],
		"__v": 0
	}]`

	var kpis []KPI
	require.NoError(t, json.Unmarshal([]byte(raw), &kpis))
	require.Len(t, kpis, 1)

	k := kpis[0]
	assert.Equal(t, "63bf7ac9f03239e002001600", k.ID)
	assert.Equal(t, 38000.0, k.ExpensesByCategory.Salaries)
	assert.Equal(t, 6500.0, k.MonthlyData[0].OperationalExpenses)
	assert.Equal(t, "2021-01-01", k.DailyData[0].Date)

	var txs []Transaction
	require.NoError(t, json.Unmarshal([]byte(`[{"_id":"t1","buyer":"Jenny Hunt","amount":12.5,"productIds":["p1"]}]`), &txs))
	assert.Equal(t, []string{"p1"}, txs[0].ProductIDs)
}
