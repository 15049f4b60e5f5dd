// Package forecast projects a short revenue series forward with an ordinary
// least-squares line.
//
// The fit is closed form over (MonthIndex, Revenue) pairs using the means of
// both coordinates. Sums are accumulated left to right in series order, so an
// identical series always yields a bit-identical model.
//
// Predicted values are extrapolations of the fitted trend, not a new fit; they
// carry no validation beyond the linear-trend assumption.
package forecast

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrNegativeHorizon is returned when the horizon is below zero.
var ErrNegativeHorizon = errors.New("horizon must not be negative")

// ErrUnorderedSeries is returned when month indices are not strictly
// increasing.
var ErrUnorderedSeries = errors.New("series month indices must be strictly increasing")

// InsufficientDataError is returned when the series has fewer points than a
// line needs.
type InsufficientDataError struct {
	Points int
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least 2 points, got %d", e.Points)
}

// MonthlyPoint is one observation of the input series.
type MonthlyPoint struct {
	// MonthIndex is the chronological position; unique and increasing.
	MonthIndex int `json:"month_index"`

	Revenue float64 `json:"revenue"`

	// Label names the month in output rows; optional.
	Label string `json:"label,omitempty"`
}

// Model is the fitted line.
type Model struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`

	// R2 is the coefficient of determination. 1 for a flat series that the
	// line reproduces exactly.
	R2 float64 `json:"r2"`
}

// At evaluates the line at index x.
func (m Model) At(x int) float64 {
	return m.Slope*float64(x) + m.Intercept
}

// Row is one output row. Predicted is nil for observed months and set for
// every projected month; projected months have Actual zero.
type Row struct {
	Label     string   `json:"label"`
	Index     int      `json:"index"`
	Actual    float64  `json:"actual"`
	Fitted    float64  `json:"fitted"`
	Predicted *float64 `json:"predicted"`
}

// Result is the fitted model and its rows: the observed months followed by
// horizon projected months.
type Result struct {
	Model Model `json:"model"`
	Rows  []Row `json:"rows"`
}

// Predictions returns only the projected rows.
func (r Result) Predictions() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Predicted != nil {
			out = append(out, row)
		}
	}
	return out
}

// Labeler names the projected row at the given month index. offset is the
// 1-based distance from the last observed month.
type Labeler func(series []MonthlyPoint, index, offset int) string

type options struct {
	precision int32
	rounded   bool
	labeler   Labeler
}

// Option configures [Forecast].
type Option func(*options)

// WithPrecision rounds the model and every fitted or predicted value to
// places decimal places, half away from zero. Unrounded by default.
func WithPrecision(places int32) Option {
	return func(o *options) {
		o.precision = places
		o.rounded = true
	}
}

// WithLabeler sets how projected rows are named. Defaults to [CycleLabels].
func WithLabeler(l Labeler) Option {
	return func(o *options) {
		if l != nil {
			o.labeler = l
		}
	}
}

// CycleLabels names a projected month after the observed month one full
// series length earlier, so a twelve-month series projects into next year's
// month names. Falls back to "t+N" when that month has no label.
func CycleLabels(series []MonthlyPoint, _, offset int) string {
	n := len(series)
	if n > 0 {
		if label := series[(n-1+offset)%n].Label; label != "" {
			return label
		}
	}
	return "t+" + strconv.Itoa(offset)
}

// Forecast fits series and projects it horizon months past the last
// observation.
//
// Returns *InsufficientDataError for fewer than two points,
// ErrNegativeHorizon, or ErrUnorderedSeries.
func Forecast(series []MonthlyPoint, horizon int, opts ...Option) (Result, error) {
	o := options{labeler: CycleLabels}
	for _, opt := range opts {
		opt(&o)
	}

	if horizon < 0 {
		return Result{}, ErrNegativeHorizon
	}
	model, err := Fit(series)
	if err != nil {
		return Result{}, err
	}

	round := func(v float64) float64 { return v }
	if o.rounded {
		round = func(v float64) float64 {
			return decimal.NewFromFloat(v).Round(o.precision).InexactFloat64()
		}
	}

	rows := make([]Row, 0, len(series)+horizon)
	for i, p := range series {
		label := p.Label
		if label == "" {
			label = strconv.Itoa(i)
		}
		rows = append(rows, Row{
			Label:  label,
			Index:  p.MonthIndex,
			Actual: p.Revenue,
			Fitted: round(model.At(p.MonthIndex)),
		})
	}

	last := series[len(series)-1].MonthIndex
	for k := 1; k <= horizon; k++ {
		idx := last + k
		v := round(model.At(idx))
		rows = append(rows, Row{
			Label:     o.labeler(series, idx, k),
			Index:     idx,
			Fitted:    v,
			Predicted: &v,
		})
	}

	return Result{
		Model: Model{
			Slope:     round(model.Slope),
			Intercept: round(model.Intercept),
			R2:        round(model.R2),
		},
		Rows: rows,
	}, nil
}

// Fit computes the least-squares line through series.
func Fit(series []MonthlyPoint) (Model, error) {
	n := len(series)
	if n < 2 {
		return Model{}, &InsufficientDataError{Points: n}
	}
	for i := 1; i < n; i++ {
		if series[i].MonthIndex <= series[i-1].MonthIndex {
			return Model{}, ErrUnorderedSeries
		}
	}

	var sumX, sumY float64
	for _, p := range series {
		sumX += float64(p.MonthIndex)
		sumY += p.Revenue
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx, syy float64
	for _, p := range series {
		dx := float64(p.MonthIndex) - meanX
		dy := p.Revenue - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}

	// sxx > 0 because indices are strictly increasing and n >= 2
	slope := sxy / sxx
	intercept := meanY - slope*meanX

	r2 := 1.0
	if syy != 0 {
		r2 = (sxy * sxy) / (sxx * syy)
	}

	return Model{Slope: slope, Intercept: intercept, R2: r2}, nil
}
