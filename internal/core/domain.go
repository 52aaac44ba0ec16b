package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	Daily  Periodicity = "daily"
	Weekly Periodicity = "weekly"
)

const (
	Flat     DistributionMode = "flat"
	BurnUp   DistributionMode = "burnup"
	BurnDown DistributionMode = "burndown"
)

const (
	ShortTerm Horizon = "short"
	LongTerm  Horizon = "long"
)

type (
	Periodicity      string
	DistributionMode string
	Horizon          string

	// ChartEntry is one observation for one period. Date is either a
	// dd-MM-yyyy daily key or a yyyy-MM month key; a single series uses
	// one encoding throughout.
	ChartEntry struct {
		Date    string  `json:"date"`
		Target  float64 `json:"target"`
		Value   float64 `json:"value"`
		Comment string  `json:"comment"`
	}

	// ChartSeries is an ordered sequence of entries for one chart and one
	// horizon, chronological ascending.
	ChartSeries []ChartEntry

	// ChartConfig describes a chart's presentation rules. It is owned by
	// the admin layer and consumed read-only by the series pipeline.
	ChartConfig struct {
		Periodicity      Periodicity
		IsCumulative     bool
		ShortTarget      float64
		LongTarget       float64
		NbDecimal        int
		DistributionMode DistributionMode
		Min              *float64
		Max              *float64
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidPeriodicity = errors.New("invalid periodicity")
	ErrInvalidMode        = errors.New("invalid distribution mode")
	ErrInvalidHorizon     = errors.New("invalid horizon")
	ErrInvalidNumber      = errors.New("invalid numeric value")
	ErrBoundsOrder        = errors.New("min must not exceed max")
)

func (p Periodicity) Validate() error {
	switch p {
	case Daily, Weekly:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPeriodicity, string(p))
}

func (m DistributionMode) Validate() error {
	switch m {
	case Flat, BurnUp, BurnDown:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
}

func (h Horizon) Validate() error {
	switch h {
	case ShortTerm, LongTerm:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidHorizon, string(h))
}

func (c ChartConfig) Validate() error {
	if err := c.Periodicity.Validate(); err != nil {
		return err
	}
	if err := c.DistributionMode.Validate(); err != nil {
		return err
	}
	if c.NbDecimal < 0 || c.NbDecimal > 6 {
		return fmt.Errorf("invalid nb_decimal %d: must be between 0 and 6", c.NbDecimal)
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return ErrBoundsOrder
	}
	return nil
}

// MainTarget returns the gap-fill default target for the given horizon.
func (c ChartConfig) MainTarget(h Horizon) float64 {
	if h == LongTerm {
		return c.LongTarget
	}
	return c.ShortTarget
}

// CheckBounds validates an edited value against the configured min/max.
// Bounds are enforced at the edit boundary, not inside the pipeline.
func (c ChartConfig) CheckBounds(value float64) error {
	if c.Min != nil && value < *c.Min {
		return fmt.Errorf("value %g below configured minimum %g", value, *c.Min)
	}
	if c.Max != nil && value > *c.Max {
		return fmt.Errorf("value %g above configured maximum %g", value, *c.Max)
	}
	return nil
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// CoerceNumber converts a wire value to float64. Stored entries may carry
// numeric fields as strings; coercion happens here, at the boundary, so the
// pipeline only ever sees numbers. Fails loudly on anything non-numeric.
func CoerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", "."))
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, n)
		}
		return f, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrInvalidNumber, v)
}
