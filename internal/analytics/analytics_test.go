package analytics

import (
	"testing"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expense(name, category string, amount int64, on time.Time) models.Transaction {
	return models.Transaction{
		Name:     name,
		Category: category,
		Amount:   decimal.NewFromInt(-amount),
		Type:     models.TransactionTypeExpense,
		Date:     on,
	}
}

func income(amount int64, on time.Time) models.Transaction {
	return models.Transaction{
		Name:     "Salary",
		Category: "Salary",
		Amount:   decimal.NewFromInt(amount),
		Type:     models.TransactionTypeIncome,
		Date:     on,
	}
}

func assertDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, actual.Equal(decimal.NewFromInt(expected)), "expected %d, got %s", expected, actual)
}

func TestMonthlySeries(t *testing.T) {
	txns := []models.Transaction{
		income(1000, date(2026, 2, 1)),
		expense("Lunch", "Food", 200, date(2026, 2, 10)),
		expense("Taxi", "Transport", 50, date(2025, 2, 3)),
		income(300, date(2026, 1, 5)),
		expense("Cinema", "Entertainment", 120, date(2026, 1, 20)),
	}

	series := MonthlySeries(txns)
	require.Len(t, series, 3)

	assert.Equal(t, "Feb 2025", series[0].Label)
	assert.Equal(t, 2025, series[0].Year)
	assertDecimal(t, 0, series[0].Income)
	assertDecimal(t, 50, series[0].Expenses)
	assertDecimal(t, -50, series[0].Balance)

	assert.Equal(t, "Jan", series[1].Month)
	assert.Equal(t, "Jan 2026", series[1].Label)
	assertDecimal(t, 300, series[1].Income)
	assertDecimal(t, 120, series[1].Expenses)
	assertDecimal(t, 180, series[1].Balance)

	assert.Equal(t, "Feb 2026", series[2].Label)
	assertDecimal(t, 1000, series[2].Income)
	assertDecimal(t, 200, series[2].Expenses)
	assertDecimal(t, 800, series[2].Balance)
}

func TestMonthlySeries_IgnoresSign(t *testing.T) {
	positiveExpense := models.Transaction{
		Category: "Food",
		Amount:   decimal.NewFromInt(75),
		Type:     models.TransactionTypeExpense,
		Date:     date(2026, 3, 1),
	}
	series := MonthlySeries([]models.Transaction{positiveExpense})
	require.Len(t, series, 1)
	assertDecimal(t, 75, series[0].Expenses)
	assertDecimal(t, 0, series[0].Income)
}

func TestCategoryTotals(t *testing.T) {
	txns := []models.Transaction{
		expense("Lunch", "Food", 100, date(2026, 1, 1)),
		expense("Dinner", "Food", 150, date(2026, 1, 2)),
		expense("Bus", "Transport", 250, date(2026, 1, 3)),
		expense("Pets", "Pets", 40, date(2026, 1, 4)),
		income(5000, date(2026, 1, 1)),
	}

	totals := CategoryTotals(txns)
	require.Len(t, totals, 3)

	assert.Equal(t, "Food", totals[0].Name)
	assertDecimal(t, 250, totals[0].Value)
	assert.Equal(t, "#8b5cf6", totals[0].Color)

	assert.Equal(t, "Transport", totals[1].Name)
	assertDecimal(t, 250, totals[1].Value)
	assert.Equal(t, "#06b6d4", totals[1].Color)

	assert.Equal(t, "Pets", totals[2].Name)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, totals[2].Color)
}

func TestCategoryColor_Deterministic(t *testing.T) {
	assert.Equal(t, CategoryColor("Pets"), CategoryColor("Pets"))
	assert.Equal(t, "#ef4444", CategoryColor("Bills"))
}

func TestDetectAnomalies(t *testing.T) {
	now := date(2026, 3, 10)

	tests := []struct {
		name     string
		amounts  []int64
		expected []string
	}{
		{"empty", nil, []string{}},
		{"fewer than five expenses", []int64{10, 10, 10, 10000}, []string{}},
		{"uniform amounts", []int64{100, 100, 100, 100, 100}, []string{}},
		// mean 1180, population stddev 1915.9, z of 5000 is 1.99
		{"just below threshold", []int64{50, 150, 200, 500, 5000}, []string{}},
		{
			"single outlier",
			[]int64{50, 60, 70, 80, 90, 100, 5000},
			[]string{"High spending detected: ₹5000 on item6"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var txns []models.Transaction
			for i, a := range tc.amounts {
				txns = append(txns, expense("item"+string(rune('0'+i)), "Food", a, now))
			}
			assert.Equal(t, tc.expected, DetectAnomalies(txns, "₹"))
		})
	}
}

func TestDetectAnomalies_AtMostTwoInInputOrder(t *testing.T) {
	now := date(2026, 3, 10)
	var txns []models.Transaction
	for i := 0; i < 30; i++ {
		txns = append(txns, expense("Coffee", "Food", 10, now))
	}
	txns = append(txns,
		expense("Laptop", "Shopping", 4000, now),
		expense("Phone", "Shopping", 3000, now),
		expense("Camera", "Shopping", 3500, now),
	)

	anomalies := DetectAnomalies(txns, "$")
	assert.Equal(t, []string{
		"High spending detected: $4000 on Laptop",
		"High spending detected: $3000 on Phone",
	}, anomalies)
}

func TestDetectAnomalies_OnlyExpenses(t *testing.T) {
	now := date(2026, 3, 10)
	txns := []models.Transaction{
		expense("a", "Food", 10, now),
		expense("b", "Food", 10, now),
		expense("c", "Food", 10, now),
		expense("d", "Food", 10, now),
		income(100000, now),
	}
	assert.Empty(t, DetectAnomalies(txns, "₹"))
}

func TestTrend(t *testing.T) {
	now := date(2026, 3, 15)

	tests := []struct {
		name     string
		txns     []models.Transaction
		now      time.Time
		expected string
	}{
		{"no data", nil, now, "No spending data yet"},
		{
			"started this month",
			[]models.Transaction{expense("Rent", "Bills", 300, date(2026, 3, 1))},
			now,
			"Spending started at ₹300 this month",
		},
		{
			"up",
			[]models.Transaction{
				expense("Rent", "Bills", 200, date(2026, 2, 1)),
				expense("Rent", "Bills", 300, date(2026, 3, 1)),
			},
			now,
			"Spending is up 50.0% (₹100) vs last month",
		},
		{
			"down",
			[]models.Transaction{
				expense("Rent", "Bills", 400, date(2026, 2, 1)),
				expense("Rent", "Bills", 300, date(2026, 3, 1)),
			},
			now,
			"Spending is down 25.0% (₹100) vs last month",
		},
		{
			"unchanged",
			[]models.Transaction{
				expense("Rent", "Bills", 300, date(2026, 2, 1)),
				expense("Rent", "Bills", 300, date(2026, 3, 1)),
			},
			now,
			"Spending is unchanged vs last month",
		},
		{
			"january compares with previous december",
			[]models.Transaction{
				expense("Gifts", "Shopping", 100, date(2025, 12, 20)),
				expense("Food", "Food", 150, date(2026, 1, 3)),
			},
			date(2026, 1, 10),
			"Spending is up 50.0% (₹50) vs last month",
		},
		{
			"same month of another year is ignored",
			[]models.Transaction{
				expense("Rent", "Bills", 300, date(2025, 2, 1)),
				expense("Rent", "Bills", 300, date(2026, 3, 1)),
			},
			now,
			"Spending started at ₹300 this month",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Trend(tc.txns, tc.now, "₹"))
		})
	}
}

func TestProjectMonthEnd(t *testing.T) {
	txns := []models.Transaction{
		expense("Groceries", "Food", 60, date(2026, 4, 2)),
		expense("Taxi", "Transport", 40, date(2026, 4, 8)),
		expense("Old", "Food", 999, date(2026, 3, 31)),
		income(1000, date(2026, 4, 1)),
	}

	assertDecimal(t, 300, ProjectMonthEnd(txns, date(2026, 4, 10)))
	assertDecimal(t, 0, ProjectMonthEnd(nil, date(2026, 4, 10)))

	onFirst := []models.Transaction{expense("Rent", "Bills", 1200, date(2026, 4, 1))}
	assertDecimal(t, 1200, ProjectMonthEnd(onFirst, date(2026, 4, 1)))
}

func TestSummarize(t *testing.T) {
	now := date(2026, 3, 15)
	txns := []models.Transaction{
		income(2000, date(2026, 2, 1)),
		expense("Rent", "Bills", 1000, date(2026, 2, 2)),
		income(3000, date(2026, 3, 1)),
		expense("Rent", "Bills", 500, date(2026, 3, 2)),
	}

	s := Summarize(txns, now)
	assertDecimal(t, 5000, s.TotalIncome)
	assertDecimal(t, 1500, s.TotalExpenses)
	assertDecimal(t, 3500, s.Balance)
	assertDecimal(t, 70, s.SavingsRate)

	assertDecimal(t, 3000, s.CurrentMonth.Income)
	assertDecimal(t, 500, s.CurrentMonth.Expense)
	assertDecimal(t, 2500, s.CurrentMonth.NetBalance)
	assertDecimal(t, 2000, s.PreviousMonth.Income)
	assertDecimal(t, 50, s.IncomeChange)
	assertDecimal(t, -50, s.ExpenseChange)
}

func TestSummarize_NoPreviousMonth(t *testing.T) {
	now := date(2026, 3, 15)
	s := Summarize([]models.Transaction{income(100, date(2026, 3, 1))}, now)
	assertDecimal(t, 100, s.IncomeChange)
	assertDecimal(t, 0, s.ExpenseChange)
	assertDecimal(t, 100, s.SavingsRate)

	empty := Summarize(nil, now)
	assertDecimal(t, 0, empty.SavingsRate)
	assertDecimal(t, 0, empty.IncomeChange)
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := BuildDashboard(nil, date(2026, 3, 15), "₹")
	assert.Empty(t, d.Monthly)
	assert.Empty(t, d.Categories)
	assert.NotNil(t, d.Anomalies)
	assert.Equal(t, "No spending data yet", d.Trend)
	assertDecimal(t, 0, d.ProjectedMonthEnd)
}

func TestMonthBucketsUseUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on Jan 31 is already Feb 1 in IST
	spent := expense("Dinner", "Food", 300, time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC).In(ist))
	txns := []models.Transaction{spent}
	now := time.Date(2026, 1, 31, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, "Spending started at ₹300 this month", Trend(txns, now, "₹"))
	assertDecimal(t, 300, ProjectMonthEnd(txns, now))
	assertDecimal(t, 300, Summarize(txns, now).CurrentMonth.Expense)

	series := MonthlySeries(txns)
	require.Len(t, series, 1)
	assert.Equal(t, "Jan 2026", series[0].Label)

	// a caller clock in another zone still resolves to the UTC month
	assert.Equal(t, "Spending started at ₹300 this month", Trend(txns, now.In(ist), "₹"))
	assertDecimal(t, 300, ProjectMonthEnd(txns, now.In(ist)))
}
