package finboard

// Month is one month of aggregated KPI figures.
type Month struct {
	ID                     string  `json:"_id"`
	Month                  string  `json:"month"`
	Revenue                float64 `json:"revenue"`
	Expenses               float64 `json:"expenses"`
	OperationalExpenses    float64 `json:"operationalExpenses"`
	NonOperationalExpenses float64 `json:"nonOperationalExpenses"`
}

// Day is one day of aggregated KPI figures.
type Day struct {
	ID       string  `json:"_id"`
	Date     string  `json:"date"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// ExpensesByCategory splits total expenses by category.
type ExpensesByCategory struct {
	Salaries float64 `json:"salaries"`
	Services float64 `json:"services"`
	Supplies float64 `json:"supplies"`
}

// KPI is a pre-aggregated KPI document as served by GET /kpi/kpis.
type KPI struct {
	ID                 string             `json:"_id"`
	TotalProfit        float64            `json:"totalProfit"`
	TotalRevenue       float64            `json:"totalRevenue"`
	TotalExpenses      float64            `json:"totalExpenses"`
	ExpensesByCategory ExpensesByCategory `json:"expensesByCategory"`
	MonthlyData        []Month            `json:"monthlyData"`
	DailyData          []Day              `json:"dailyData"`
	CreatedAt          string             `json:"createdAt,omitempty"`
	UpdatedAt          string             `json:"updatedAt,omitempty"`
}

// Product is a product document as served by GET /product/products.
type Product struct {
	ID           string   `json:"_id"`
	Price        float64  `json:"price"`
	Expense      float64  `json:"expense"`
	Transactions []string `json:"transactions"`
}

// Transaction is a transaction document as served by
// GET /transaction/transactions.
type Transaction struct {
	ID         string   `json:"_id"`
	Buyer      string   `json:"buyer"`
	Amount     float64  `json:"amount"`
	ProductIDs []string `json:"productIds"`
}
