// Package analytics derives dashboard metrics from a list of transactions.
// Every function is pure and accepts an empty list. Amounts are aggregated by
// magnitude and classified by transaction type, never by their sign.
package analytics

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/shopspring/decimal"
)

const (
	anomalyMinExpenses = 5
	anomalyThreshold   = 2.0
	anomalyMaxMessages = 2
)

var hundred = decimal.NewFromInt(100)

// categoryColors is the palette of the default categories
var categoryColors = map[string]string{
	"Food":          "#8b5cf6",
	"Transport":     "#06b6d4",
	"Entertainment": "#f59e0b",
	"Bills":         "#ef4444",
	"Shopping":      "#10b981",
	"Healthcare":    "#ec4899",
	"Education":     "#3b82f6",
	"Other":         "#6b7280",
}

// CategoryColor returns the palette colour of a category, or a colour derived
// from the name's FNV-1a hash for categories outside the palette.
func CategoryColor(name string) string {
	if c, ok := categoryColors[name]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("#%06x", h.Sum32()&0xffffff)
}

type monthKey struct {
	year  int
	month time.Month
}

// keyOf buckets by the UTC calendar month regardless of the zone t carries
func keyOf(t time.Time) monthKey {
	t = t.UTC()
	return monthKey{year: t.Year(), month: t.Month()}
}

func (k monthKey) previous() monthKey {
	if k.month == time.January {
		return monthKey{year: k.year - 1, month: time.December}
	}
	return monthKey{year: k.year, month: k.month - 1}
}

func (k monthKey) before(o monthKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	return k.month < o.month
}

// MonthlySeries sums income and expenses per calendar month in chronological order
func MonthlySeries(txns []models.Transaction) []models.MonthlyPoint {
	points := make(map[monthKey]*models.MonthlyPoint)
	for _, t := range txns {
		k := keyOf(t.Date)
		p, ok := points[k]
		if !ok {
			first := time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC)
			p = &models.MonthlyPoint{
				Month:    first.Format("Jan"),
				Year:     k.year,
				Label:    first.Format("Jan 2006"),
				Income:   decimal.Zero,
				Expenses: decimal.Zero,
			}
			points[k] = p
		}
		if t.IsExpense() {
			p.Expenses = p.Expenses.Add(t.Magnitude())
		} else {
			p.Income = p.Income.Add(t.Magnitude())
		}
	}

	keys := make([]monthKey, 0, len(points))
	for k := range points {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })

	series := make([]models.MonthlyPoint, 0, len(keys))
	for _, k := range keys {
		p := points[k]
		p.Balance = p.Income.Sub(p.Expenses)
		series = append(series, *p)
	}
	return series
}

// CategoryTotals sums expenses per category, largest first
func CategoryTotals(txns []models.Transaction) []models.CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if !t.IsExpense() {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Magnitude())
	}

	totals := make([]models.CategoryTotal, 0, len(sums))
	for name, value := range sums {
		totals = append(totals, models.CategoryTotal{Name: name, Value: value, Color: CategoryColor(name)})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Value.Cmp(totals[j].Value); c != 0 {
			return c > 0
		}
		return totals[i].Name < totals[j].Name
	})
	return totals
}

// DetectAnomalies flags expenses more than two population standard deviations
// above the mean expense. At most two messages are returned, in input order.
func DetectAnomalies(txns []models.Transaction, currency string) []string {
	anomalies := []string{}

	var expenses []models.Transaction
	for _, t := range txns {
		if t.IsExpense() {
			expenses = append(expenses, t)
		}
	}
	if len(expenses) < anomalyMinExpenses {
		return anomalies
	}

	amounts := make([]float64, len(expenses))
	for i, t := range expenses {
		amounts[i] = t.Magnitude().InexactFloat64()
	}
	mean, std := meanStdDev(amounts)
	divisor := math.Max(std, 1)

	for i, t := range expenses {
		if (amounts[i]-mean)/divisor <= anomalyThreshold {
			continue
		}
		anomalies = append(anomalies, fmt.Sprintf("High spending detected: %s%s on %s",
			currency, formatAmount(t.Magnitude()), t.Name))
		if len(anomalies) == anomalyMaxMessages {
			break
		}
	}
	return anomalies
}

func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func expensesIn(txns []models.Transaction, k monthKey) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if t.IsExpense() && keyOf(t.Date) == k {
			total = total.Add(t.Magnitude())
		}
	}
	return total
}

func incomeIn(txns []models.Transaction, k monthKey) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if !t.IsExpense() && keyOf(t.Date) == k {
			total = total.Add(t.Magnitude())
		}
	}
	return total
}

// Trend describes this month's spending compared to the previous calendar month
func Trend(txns []models.Transaction, now time.Time, currency string) string {
	current := keyOf(now)
	thisMonth := expensesIn(txns, current)
	lastMonth := expensesIn(txns, current.previous())

	if lastMonth.IsZero() {
		if thisMonth.IsPositive() {
			return fmt.Sprintf("Spending started at %s%s this month", currency, formatAmount(thisMonth))
		}
		return "No spending data yet"
	}

	diff := thisMonth.Sub(lastMonth)
	if diff.IsZero() {
		return "Spending is unchanged vs last month"
	}
	direction := "up"
	if diff.IsNegative() {
		direction = "down"
	}
	percent := diff.Abs().Div(lastMonth).Mul(hundred)
	return fmt.Sprintf("Spending is %s %s%% (%s%s) vs last month",
		direction, percent.StringFixed(1), currency, formatAmount(diff.Abs()))
}

// ProjectMonthEnd extrapolates this month's spending to the end of the month
// from the average daily spend so far. On the first day the raw total is returned.
func ProjectMonthEnd(txns []models.Transaction, now time.Time) decimal.Decimal {
	now = now.UTC()
	spent := expensesIn(txns, keyOf(now))
	day := now.Day()
	if day <= 1 {
		return spent
	}
	return spent.Div(decimal.NewFromInt(int64(day))).
		Mul(decimal.NewFromInt(int64(daysInMonth(now)))).
		Round(0)
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Summarize computes overall totals and the month-over-month change of
// income and expenses.
func Summarize(txns []models.Transaction, now time.Time) models.Summary {
	s := models.Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, t := range txns {
		if t.IsExpense() {
			s.TotalExpenses = s.TotalExpenses.Add(t.Magnitude())
		} else {
			s.TotalIncome = s.TotalIncome.Add(t.Magnitude())
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.SavingsRate = decimal.Zero
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = s.Balance.Div(s.TotalIncome).Mul(hundred).Round(1)
	}

	current := keyOf(now)
	s.CurrentMonth = periodStats(txns, current)
	s.PreviousMonth = periodStats(txns, current.previous())
	s.IncomeChange = percentChange(s.CurrentMonth.Income, s.PreviousMonth.Income)
	s.ExpenseChange = percentChange(s.CurrentMonth.Expense, s.PreviousMonth.Expense)
	return s
}

func periodStats(txns []models.Transaction, k monthKey) models.IncomeExpenseStats {
	income := incomeIn(txns, k)
	expense := expensesIn(txns, k)
	return models.IncomeExpenseStats{Income: income, Expense: expense, NetBalance: income.Sub(expense)}
}

func percentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(1)
}

// BuildDashboard computes every metric of the dashboard at once
func BuildDashboard(txns []models.Transaction, now time.Time, currency string) models.Dashboard {
	return models.Dashboard{
		Summary:           Summarize(txns, now),
		Monthly:           MonthlySeries(txns),
		Categories:        CategoryTotals(txns),
		Anomalies:         DetectAnomalies(txns, currency),
		Trend:             Trend(txns, now, currency),
		ProjectedMonthEnd: ProjectMonthEnd(txns, now),
	}
}

// formatAmount prints whole amounts without decimals and others with two
func formatAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(2)
}
