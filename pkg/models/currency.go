// Package models defines the shared data types for the fxstream service:
// currency pairs, rate quotes, conversion results, and historical series.
package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ConnectionID is an opaque identifier for a live client connection.
// It is minted on connect and never reused while still referenced.
type ConnectionID string

// CurrencyPair is an ordered (from, to) pair of ISO-4217-like currency
// codes. Codes are upper-cased on construction so that equality (and use
// as a map key) is case-insensitive. The pair is the de-duplication key
// for upstream fetches.
type CurrencyPair struct {
	From string `json:"from"` // e.g., "USD"
	To   string `json:"to"`   // e.g., "EUR"
}

// NewPair builds a normalized currency pair.
func NewPair(from, to string) CurrencyPair {
	return CurrencyPair{
		From: strings.ToUpper(strings.TrimSpace(from)),
		To:   strings.ToUpper(strings.TrimSpace(to)),
	}
}

// String returns the pair in "USD-EUR" form.
func (p CurrencyPair) String() string {
	return p.From + "-" + p.To
}

// Valid reports whether both codes are non-empty.
func (p CurrencyPair) Valid() bool {
	return p.From != "" && p.To != ""
}

// RateQuote is a point-in-time exchange rate for a pair. Immutable once
// produced; one is created per successful upstream fetch.
type RateQuote struct {
	Pair       CurrencyPair `json:"pair"`
	Rate       float64      `json:"rate"`
	AsOfDate   time.Time    `json:"as_of_date"`  // the provider's quote date
	ObservedAt time.Time    `json:"observed_at"` // when the fetch completed
}

// Valid reports whether the rate is a finite, positive number. Quotes
// failing this check are discarded, never forwarded.
func (q *RateQuote) Valid() bool {
	return q != nil && q.Rate > 0 && !math.IsInf(q.Rate, 0) && !math.IsNaN(q.Rate)
}

// ConversionResult is an amount-scaled conversion for a pair. Derived
// value; never stored.
type ConversionResult struct {
	Pair            CurrencyPair `json:"pair"`
	Amount          float64      `json:"amount"`
	Rate            float64      `json:"rate"`
	ConvertedAmount float64      `json:"converted_amount"`
	AsOfDate        time.Time    `json:"as_of_date"`
}

// RatePoint is a single (date, rate) observation in a historical series.
type RatePoint struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// HistoricalSeries is an ordered sequence of daily rate observations for
// a pair over a trailing window. Recomputed on each request, never cached.
type HistoricalSeries struct {
	Pair      CurrencyPair `json:"pair"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Points    []RatePoint  `json:"points"`
}

// Sanitized returns a copy of the series with non-positive or non-finite
// rate points removed and the remainder sorted by date ascending.
func (s HistoricalSeries) Sanitized() HistoricalSeries {
	out := HistoricalSeries{
		Pair:      s.Pair,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
	}
	for _, pt := range s.Points {
		if pt.Rate > 0 && !math.IsInf(pt.Rate, 0) && !math.IsNaN(pt.Rate) {
			out.Points = append(out.Points, pt)
		}
	}
	sort.Slice(out.Points, func(i, j int) bool {
		return out.Points[i].Date.Before(out.Points[j].Date)
	})
	return out
}

// ValidateAmount checks that a conversion amount is a positive finite number.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount must be a finite number")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", amount)
	}
	return nil
}
