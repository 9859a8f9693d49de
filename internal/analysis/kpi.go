package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Columns consumed by ComputeKPIs.
const (
	ColumnRevenue       = "revenue"
	ColumnFixedCosts    = "fixed_costs"
	ColumnVariableCosts = "variable_costs"
	ColumnCash          = "cash"
)

// NotApplicable is shown in place of a runway that has no meaning.
const NotApplicable = "n/a"

// RequiredColumns lists the numeric columns a dataset must provide.
var RequiredColumns = []string{ColumnRevenue, ColumnFixedCosts, ColumnVariableCosts, ColumnCash}

// ErrInsufficientData is returned for a table without data rows.
var ErrInsufficientData = errors.New("insufficient data: the table has no rows")

// MissingColumnError reports a required column absent from the header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// ErrNotFinite marks a cell that parsed as NaN or an infinity.
var ErrNotFinite = errors.New("value is not a finite number")

// ValueError reports a cell that could not be read as a number.
type ValueError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ValueError) Error() string {
	if errors.Is(e.Err, ErrNotFinite) {
		return fmt.Sprintf("row %d column %q: %q is not a finite number", e.Row, e.Column, e.Value)
	}
	return fmt.Sprintf("row %d column %q: %q is not a number", e.Row, e.Column, e.Value)
}

func (e *ValueError) Unwrap() error { return e.Err }

// KPIs are the derived figures shown on the dashboard.
type KPIs struct {
	Periods      int
	Profits      []float64
	AvgProfit    float64
	StartingCash float64
	// Runway is only meaningful when RunwayApplicable is true, that is
	// when the average profit is strictly positive.
	Runway           float64
	RunwayApplicable bool
}

// ComputeKPIs derives per-period profit, its mean, the starting cash from
// the first row, and the runway in periods.
func ComputeKPIs(t *Table) (KPIs, error) {
	for _, c := range RequiredColumns {
		if t.ColumnIndex(c) < 0 {
			return KPIs{}, &MissingColumnError{Column: c}
		}
	}
	if len(t.Rows) == 0 {
		return KPIs{}, ErrInsufficientData
	}
	cols := make(map[string][]float64, len(RequiredColumns))
	for _, c := range RequiredColumns {
		vals, err := t.Float64s(c)
		if err != nil {
			return KPIs{}, err
		}
		cols[c] = vals
	}

	k := KPIs{Periods: len(t.Rows), Profits: make([]float64, len(t.Rows))}
	var sum float64
	for i := range t.Rows {
		p := cols[ColumnRevenue][i] - cols[ColumnFixedCosts][i] - cols[ColumnVariableCosts][i]
		k.Profits[i] = p
		sum += p
	}
	k.AvgProfit = sum / float64(len(t.Rows))
	k.StartingCash = cols[ColumnCash][0]
	if k.AvgProfit > 0 {
		k.Runway = k.StartingCash / k.AvgProfit
		k.RunwayApplicable = true
	}
	return k, nil
}

// AvgProfitText formats the average profit as currency.
func (k KPIs) AvgProfitText() string { return FormatCurrency(k.AvgProfit) }

// StartingCashText formats the starting cash as currency.
func (k KPIs) StartingCashText() string { return FormatCurrency(k.StartingCash) }

// RunwayText formats the runway with one decimal, or NotApplicable.
func (k KPIs) RunwayText() string {
	if !k.RunwayApplicable {
		return NotApplicable
	}
	return FormatNumber(k.Runway, 1)
}

// FormatCurrency renders v with no decimals, thousands separators and a
// euro suffix, e.g. "4,000 €".
func FormatCurrency(v float64) string {
	return FormatNumber(v, 0) + " €"
}

// FormatNumber renders v with the given number of decimals and comma
// thousands separators.
func FormatNumber(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return s
	}
	grouped := humanize.Comma(n)
	if intPart == "-0" {
		grouped = "-0"
	}
	if hasFrac {
		return grouped + "." + frac
	}
	return grouped
}
