// Package frankfurter implements the RateSource boundary against the
// Frankfurter exchange-rate API (https://api.frankfurter.app), which
// serves ECB reference rates keyed by ISO currency code.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/seenimoa/fxstream/internal/infra"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/pkg/models"
	"github.com/seenimoa/fxstream/pkg/utils"
)

const defaultBaseURL = "https://api.frankfurter.app"

// Provider fetches rates from the Frankfurter API. No credentials are
// required; the upstream is a public JSON API.
type Provider struct {
	baseURL string
}

// New creates a Frankfurter provider against the public endpoint.
func New() *Provider {
	return &Provider{baseURL: defaultBaseURL}
}

// NewWithBaseURL creates a provider against a custom endpoint. Used by
// tests to point at a stub server.
func NewWithBaseURL(base string) *Provider {
	return &Provider{baseURL: base}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "frankfurter" }

// Ping verifies connectivity by listing currencies.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.Currencies(ctx)
	return err
}

// Latest fetches the current rate for a pair.
func (p *Provider) Latest(ctx context.Context, pair models.CurrencyPair) (*models.RateQuote, error) {
	q := url.Values{}
	q.Set("from", pair.From)
	q.Set("to", pair.To)

	var resp latestResponse
	if err := p.fetchJSON(ctx, "/latest?"+q.Encode(), &resp); err != nil {
		return nil, &provider.UpstreamError{Provider: p.Name(), Op: "latest", Err: err}
	}

	rate, ok := resp.Rates[pair.To]
	if !ok {
		return nil, &provider.UpstreamError{
			Provider: p.Name(), Op: "latest",
			Err: fmt.Errorf("no rate for %s in response", pair.To),
		}
	}

	quote := &models.RateQuote{
		Pair:       pair,
		Rate:       rate,
		AsOfDate:   parseDate(resp.Date),
		ObservedAt: time.Now().UTC(),
	}
	if !quote.Valid() {
		return nil, &provider.UpstreamError{
			Provider: p.Name(), Op: "latest",
			Err: fmt.Errorf("non-positive rate %v for %s", rate, pair),
		}
	}
	return quote, nil
}

// Convert fetches an amount-scaled conversion for a pair. The upstream
// scales the rates mapping by the amount parameter, so the returned
// value is already the converted amount.
func (p *Provider) Convert(ctx context.Context, amount float64, pair models.CurrencyPair) (*models.ConversionResult, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("from", pair.From)
	q.Set("to", pair.To)

	var resp latestResponse
	if err := p.fetchJSON(ctx, "/latest?"+q.Encode(), &resp); err != nil {
		return nil, &provider.UpstreamError{Provider: p.Name(), Op: "convert", Err: err}
	}

	converted, ok := resp.Rates[pair.To]
	if !ok {
		return nil, &provider.UpstreamError{
			Provider: p.Name(), Op: "convert",
			Err: fmt.Errorf("no rate for %s in response", pair.To),
		}
	}

	return &models.ConversionResult{
		Pair:            pair,
		Amount:          amount,
		Rate:            converted / amount,
		ConvertedAmount: converted,
		AsOfDate:        parseDate(resp.Date),
	}, nil
}

// History fetches the daily series for a pair over [start, end].
// Non-positive rate points are dropped before the series is returned.
func (p *Provider) History(ctx context.Context, pair models.CurrencyPair, start, end time.Time) (models.HistoricalSeries, error) {
	q := url.Values{}
	q.Set("from", pair.From)
	q.Set("to", pair.To)
	endpoint := fmt.Sprintf("/%s..%s?%s", utils.FormatDate(start), utils.FormatDate(end), q.Encode())

	var resp seriesResponse
	if err := p.fetchJSON(ctx, endpoint, &resp); err != nil {
		return models.HistoricalSeries{}, &provider.UpstreamError{Provider: p.Name(), Op: "history", Err: err}
	}

	series := models.HistoricalSeries{
		Pair:      pair,
		StartDate: start,
		EndDate:   end,
	}
	for date, rates := range resp.Rates {
		rate, ok := rates[pair.To]
		if !ok {
			continue
		}
		series.Points = append(series.Points, models.RatePoint{
			Date: parseDate(date),
			Rate: rate,
		})
	}
	return series.Sanitized(), nil
}

// Currencies lists the supported currency codes with display names.
func (p *Provider) Currencies(ctx context.Context) (map[string]string, error) {
	var resp map[string]string
	if err := p.fetchJSON(ctx, "/currencies", &resp); err != nil {
		return nil, &provider.UpstreamError{Provider: p.Name(), Op: "currencies", Err: err}
	}
	return resp, nil
}

// fetchJSON performs a GET against the Frankfurter API and decodes JSON.
func (p *Provider) fetchJSON(ctx context.Context, endpoint string, dest any) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

func parseDate(s string) time.Time {
	t, err := utils.ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
