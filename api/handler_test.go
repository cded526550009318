package api

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/fxstream/internal/registry"
	"github.com/seenimoa/fxstream/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// stubSource is a scriptable RateSource that counts upstream calls.
type stubSource struct {
	mu           sync.Mutex
	calls        int
	rate         float64
	err          error
	series       models.HistoricalSeries
	latestHook   func() // runs inside Latest before returning, if set
}

func (s *stubSource) Latest(ctx context.Context, pair models.CurrencyPair) (*models.RateQuote, error) {
	s.mu.Lock()
	s.calls++
	hook := s.latestHook
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.RateQuote{
		Pair:       pair,
		Rate:       s.rate,
		AsOfDate:   time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		ObservedAt: time.Now().UTC(),
	}, nil
}

func (s *stubSource) Convert(ctx context.Context, amount float64, pair models.CurrencyPair) (*models.ConversionResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &models.ConversionResult{
		Pair:            pair,
		Amount:          amount,
		Rate:            s.rate,
		ConvertedAmount: amount * s.rate,
		AsOfDate:        time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubSource) History(ctx context.Context, pair models.CurrencyPair, start, end time.Time) (models.HistoricalSeries, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return models.HistoricalSeries{}, s.err
	}
	return s.series, nil
}

func (s *stubSource) Currencies(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return map[string]string{"USD": "United States Dollar", "EUR": "Euro"}, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSession(t *testing.T, source *stubSource) (*session, *Client, *registry.Registry) {
	t.Helper()
	hub := NewHub()
	subs := registry.New()
	client := newClient("c1")
	hub.Register(client)
	sess := newSession("c1", hub, subs, source, time.Second)
	return sess, client, subs
}

// drainEvents collects everything currently queued for the client.
func drainEvents(client *Client) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-client.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// convert-currency
// ════════════════════════════════════════════════════════════════════

func TestConvertRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"negative string amount", `{"type":"convert-currency","data":{"amount":"-5","from":"USD","to":"EUR"}}`},
		{"zero amount", `{"type":"convert-currency","data":{"amount":0,"from":"USD","to":"EUR"}}`},
		{"non-numeric amount", `{"type":"convert-currency","data":{"amount":"lots","from":"USD","to":"EUR"}}`},
		{"missing from", `{"type":"convert-currency","data":{"amount":100,"from":"","to":"EUR"}}`},
		{"blank to", `{"type":"convert-currency","data":{"amount":100,"from":"USD","to":"  "}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &stubSource{rate: 0.92}
			sess, client, _ := newTestSession(t, source)

			sess.handle(context.Background(), []byte(tt.payload))

			if got := source.callCount(); got != 0 {
				t.Errorf("validation failure made %d upstream calls, want 0", got)
			}
			events := drainEvents(client)
			if len(events) != 1 || events[0].Type != EvConversionError {
				t.Fatalf("expected a single conversion-error event, got %v", events)
			}
		})
	}
}

func TestConvertSuccess(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, client, _ := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"convert-currency","data":{"amount":"100","from":"usd","to":"eur"}}`))

	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvConversionResult {
		t.Fatalf("expected conversion-result, got %v", events)
	}
	result, ok := events[0].Data.(ConversionResult)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Data)
	}
	if result.ConvertedAmount != 92.0 {
		t.Errorf("convertedAmount = %v, want 92.0", result.ConvertedAmount)
	}
	if result.From != "USD" || result.To != "EUR" {
		t.Errorf("codes not normalized: %s → %s", result.From, result.To)
	}
}

func TestConvertUpstreamFailure(t *testing.T) {
	source := &stubSource{err: fmt.Errorf("upstream down")}
	sess, client, _ := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"convert-currency","data":{"amount":100,"from":"USD","to":"EUR"}}`))

	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvConversionError {
		t.Fatalf("expected conversion-error, got %v", events)
	}
	payload := events[0].Data.(ErrorPayload)
	if payload.Message == "" || payload.Error == "" {
		t.Error("error payload should carry message and error detail")
	}
}

func TestConvertNeverTouchesRegistry(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, _, subs := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"convert-currency","data":{"amount":100,"from":"USD","to":"EUR"}}`))

	if got := len(subs.DistinctPairs()); got != 0 {
		t.Errorf("convert mutated the registry: %d pairs", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// subscribe-rates / unsubscribe-rates
// ════════════════════════════════════════════════════════════════════

func TestSubscribeRecordsAndEmitsImmediateRate(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, client, subs := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"subscribe-rates","data":{"from":"USD","to":"EUR"}}`))

	pair := models.NewPair("USD", "EUR")
	if got := subs.DistinctPairs()[pair]; len(got) != 1 || got[0] != "c1" {
		t.Errorf("subscription not recorded: %v", got)
	}

	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvRateUpdate {
		t.Fatalf("expected immediate rate-update, got %v", events)
	}
	update := events[0].Data.(RateUpdate)
	if update.Rate != 0.92 {
		t.Errorf("rate = %v, want 0.92", update.Rate)
	}
}

func TestSubscribeKeepsSubscriptionOnFetchFailure(t *testing.T) {
	source := &stubSource{err: fmt.Errorf("upstream down")}
	sess, client, subs := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"subscribe-rates","data":{"from":"USD","to":"EUR"}}`))

	if got := len(subs.DistinctPairs()); got != 1 {
		t.Error("subscription should be recorded even when the initial fetch fails")
	}
	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvSubscriptionError {
		t.Fatalf("expected subscription-error, got %v", events)
	}
}

func TestSubscribeValidationFailureMakesNoUpstreamCall(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, client, subs := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"subscribe-rates","data":{"from":"","to":"EUR"}}`))

	if source.callCount() != 0 {
		t.Error("validation failure should make no upstream call")
	}
	if len(subs.DistinctPairs()) != 0 {
		t.Error("invalid pair should not be recorded")
	}
	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvSubscriptionError {
		t.Fatalf("expected subscription-error, got %v", events)
	}
}

func TestUnsubscribeEmitsNothing(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, client, subs := newTestSession(t, source)

	pair := models.NewPair("USD", "EUR")
	subs.Add("c1", pair)

	sess.handle(context.Background(), []byte(`{"type":"unsubscribe-rates","data":{"from":"USD","to":"EUR"}}`))

	if len(subs.DistinctPairs()) != 0 {
		t.Error("unsubscribe should remove the subscription")
	}
	if events := drainEvents(client); len(events) != 0 {
		t.Errorf("unsubscribe should emit nothing, got %v", events)
	}

	// Unsubscribing again is a silent no-op.
	sess.handle(context.Background(), []byte(`{"type":"unsubscribe-rates","data":{"from":"USD","to":"EUR"}}`))
	if events := drainEvents(client); len(events) != 0 {
		t.Errorf("repeated unsubscribe should emit nothing, got %v", events)
	}
}

// ════════════════════════════════════════════════════════════════════
// get-historical-rates
// ════════════════════════════════════════════════════════════════════

func TestHistoryFiltersNonPositivePoints(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 8, d, 0, 0, 0, 0, time.UTC) }
	source := &stubSource{
		series: models.HistoricalSeries{
			Pair: models.NewPair("USD", "EUR"),
			Points: []models.RatePoint{
				{Date: day(25), Rate: 0.91},
				{Date: day(26), Rate: 0.92},
				{Date: day(27), Rate: 0}, // must be filtered
				{Date: day(28), Rate: 0.93},
				{Date: day(29), Rate: 0.94},
			},
		},
	}
	sess, client, _ := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"get-historical-rates","data":{"from":"USD","to":"EUR"}}`))

	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvHistoricalRates {
		t.Fatalf("expected historical-rates, got %v", events)
	}
	payload := events[0].Data.(HistoricalRates)
	if len(payload.Data.Points) != 4 {
		t.Fatalf("expected 4 points after filtering the zero-rate point, got %d", len(payload.Data.Points))
	}
	for _, pt := range payload.Data.Points {
		if pt.Rate <= 0 {
			t.Errorf("non-positive rate %v surfaced to the client", pt.Rate)
		}
	}
}

func TestHistoryUpstreamFailure(t *testing.T) {
	source := &stubSource{err: fmt.Errorf("upstream down")}
	sess, client, _ := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"get-historical-rates","data":{"from":"USD","to":"EUR"}}`))

	events := drainEvents(client)
	if len(events) != 1 || events[0].Type != EvHistoricalError {
		t.Fatalf("expected historical-error, got %v", events)
	}
}

// ════════════════════════════════════════════════════════════════════
// disconnect
// ════════════════════════════════════════════════════════════════════

func TestDisconnectMidFlightDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	source := &stubSource{rate: 0.92}
	source.latestHook = func() {
		close(started)
		<-release
	}
	sess, client, subs := newTestSession(t, source)

	done := make(chan struct{})
	go func() {
		sess.handle(context.Background(), []byte(`{"type":"subscribe-rates","data":{"from":"USD","to":"EUR"}}`))
		close(done)
	}()

	<-started
	// Disconnect while the upstream call is still in flight.
	sess.finish()
	close(release)
	<-done

	// The in-flight result must be discarded, not delivered.
	for ev := range client.send {
		t.Errorf("event %v delivered after disconnect", ev)
	}
	// No residual subscription may survive the disconnect.
	if got := len(subs.DistinctPairs()); got != 0 {
		t.Errorf("residual subscriptions after disconnect: %d", got)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, _, subs := newTestSession(t, source)

	subs.Add("c1", models.NewPair("USD", "EUR"))

	sess.finish()
	sess.finish() // second call must be a no-op

	if got := len(subs.DistinctPairs()); got != 0 {
		t.Errorf("subscriptions remain after finish: %d", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// dispatch
// ════════════════════════════════════════════════════════════════════

func TestUnknownMessageTypeIgnored(t *testing.T) {
	source := &stubSource{rate: 0.92}
	sess, client, _ := newTestSession(t, source)

	sess.handle(context.Background(), []byte(`{"type":"make-coffee","data":{}}`))
	sess.handle(context.Background(), []byte(`not even json`))

	if events := drainEvents(client); len(events) != 0 {
		t.Errorf("unknown messages should be ignored, got %v", events)
	}
	if source.callCount() != 0 {
		t.Error("unknown messages should make no upstream call")
	}
}
