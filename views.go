package finboard

import (
	"github.com/shopspring/decimal"

	"github.com/jpalmerr/finboard/forecast"
)

// Views are pure projections of resource data into chart-ready rows. Each
// takes the first KPI document, as the backend serves a single aggregate.

// monthLabel shortens a month name to its first three characters.
func monthLabel(month string) string {
	r := []rune(month)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

// firstKPI returns the aggregate document, or false for an empty collection.
func firstKPI(kpis []KPI) (KPI, bool) {
	if len(kpis) == 0 {
		return KPI{}, false
	}
	return kpis[0], true
}

// RevenuePoint is one month of revenue.
type RevenuePoint struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// MonthlyRevenue lists revenue per month.
func MonthlyRevenue(kpis []KPI) []RevenuePoint {
	kpi, ok := firstKPI(kpis)
	if !ok {
		return nil
	}
	out := make([]RevenuePoint, len(kpi.MonthlyData))
	for i, m := range kpi.MonthlyData {
		out[i] = RevenuePoint{Month: monthLabel(m.Month), Revenue: m.Revenue}
	}
	return out
}

// RevenueExpensesPoint is one month of revenue against expenses.
type RevenueExpensesPoint struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// RevenueExpenses lists revenue and expenses per month.
func RevenueExpenses(kpis []KPI) []RevenueExpensesPoint {
	kpi, ok := firstKPI(kpis)
	if !ok {
		return nil
	}
	out := make([]RevenueExpensesPoint, len(kpi.MonthlyData))
	for i, m := range kpi.MonthlyData {
		out[i] = RevenueExpensesPoint{Month: monthLabel(m.Month), Revenue: m.Revenue, Expenses: m.Expenses}
	}
	return out
}

// RevenueProfitPoint is one month of revenue and profit. Profit is rounded
// to the cent in decimal arithmetic.
type RevenueProfitPoint struct {
	Month   string          `json:"month"`
	Revenue float64         `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

// RevenueProfit lists revenue and revenue minus expenses per month.
func RevenueProfit(kpis []KPI) []RevenueProfitPoint {
	kpi, ok := firstKPI(kpis)
	if !ok {
		return nil
	}
	out := make([]RevenueProfitPoint, len(kpi.MonthlyData))
	for i, m := range kpi.MonthlyData {
		profit := decimal.NewFromFloat(m.Revenue).Sub(decimal.NewFromFloat(m.Expenses))
		out[i] = RevenueProfitPoint{
			Month:   monthLabel(m.Month),
			Revenue: m.Revenue,
			Profit:  profit.Round(2),
		}
	}
	return out
}

// OperationalPoint is one month of operational against non-operational
// expenses.
type OperationalPoint struct {
	Month                  string  `json:"month"`
	OperationalExpenses    float64 `json:"operationalExpenses"`
	NonOperationalExpenses float64 `json:"nonOperationalExpenses"`
}

// OperationalSplit lists the expense split per month.
func OperationalSplit(kpis []KPI) []OperationalPoint {
	kpi, ok := firstKPI(kpis)
	if !ok {
		return nil
	}
	out := make([]OperationalPoint, len(kpi.MonthlyData))
	for i, m := range kpi.MonthlyData {
		out[i] = OperationalPoint{
			Month:                  monthLabel(m.Month),
			OperationalExpenses:    m.OperationalExpenses,
			NonOperationalExpenses: m.NonOperationalExpenses,
		}
	}
	return out
}

// PriceExpensePoint is one product's price against its expense.
type PriceExpensePoint struct {
	ID      string  `json:"id"`
	Price   float64 `json:"price"`
	Expense float64 `json:"expense"`
}

// PriceExpense lists price and expense per product.
func PriceExpense(products []Product) []PriceExpensePoint {
	if len(products) == 0 {
		return nil
	}
	out := make([]PriceExpensePoint, len(products))
	for i, p := range products {
		out[i] = PriceExpensePoint{ID: p.ID, Price: p.Price, Expense: p.Expense}
	}
	return out
}

// Share is one slice of an expense pie.
type Share struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// ExpenseShares returns, per category, the category's expenses paired with
// the rest of total expenses. Categories are in salaries, services, supplies
// order. Nil when total expenses are zero.
func ExpenseShares(kpis []KPI) [][2]Share {
	kpi, ok := firstKPI(kpis)
	if !ok || kpi.TotalExpenses == 0 {
		return nil
	}

	total := decimal.NewFromFloat(kpi.TotalExpenses)
	categories := []struct {
		name  string
		value float64
	}{
		{"salaries", kpi.ExpensesByCategory.Salaries},
		{"services", kpi.ExpensesByCategory.Services},
		{"supplies", kpi.ExpensesByCategory.Supplies},
	}

	out := make([][2]Share, len(categories))
	for i, c := range categories {
		v := decimal.NewFromFloat(c.value)
		out[i] = [2]Share{
			{Name: c.name, Value: v},
			{Name: c.name + " of Total", Value: total.Sub(v)},
		}
	}
	return out
}

// RevenueSeries converts monthly KPI data into forecaster input: month index
// in document order and the three-letter month label.
func RevenueSeries(kpis []KPI) []forecast.MonthlyPoint {
	kpi, ok := firstKPI(kpis)
	if !ok {
		return nil
	}
	out := make([]forecast.MonthlyPoint, len(kpi.MonthlyData))
	for i, m := range kpi.MonthlyData {
		out[i] = forecast.MonthlyPoint{MonthIndex: i, Revenue: m.Revenue, Label: monthLabel(m.Month)}
	}
	return out
}
