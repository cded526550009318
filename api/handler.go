package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/seenimoa/fxstream/internal/metrics"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/internal/registry"
	"github.com/seenimoa/fxstream/pkg/models"
	"github.com/seenimoa/fxstream/pkg/utils"
)

// historyWindowDays is the trailing window for historical requests.
const historyWindowDays = 30

// session is the per-connection message processor. It translates inbound
// requests into RateSource calls and registry mutations and pushes the
// results back to its own connection only. Messages are handled
// sequentially, so a connection's replies keep its request order.
type session struct {
	id      models.ConnectionID
	hub     *Hub
	subs    *registry.Registry
	source  provider.RateSource
	timeout time.Duration

	closeOnce sync.Once
}

func newSession(id models.ConnectionID, hub *Hub, subs *registry.Registry, source provider.RateSource, timeout time.Duration) *session {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &session{
		id:      id,
		hub:     hub,
		subs:    subs,
		source:  source,
		timeout: timeout,
	}
}

// handle dispatches one inbound message. Unknown types are ignored.
func (s *session) handle(ctx context.Context, raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case MsgConvertCurrency:
		s.handleConvert(ctx, msg.Data)
	case MsgSubscribeRates:
		s.handleSubscribe(ctx, msg.Data)
	case MsgUnsubscribeRates:
		s.handleUnsubscribe(msg.Data)
	case MsgGetHistoricalRates:
		s.handleHistory(ctx, msg.Data)
	}
}

// handleConvert validates the request, performs one upstream conversion
// and emits the result or a conversion-error. Never touches the registry.
func (s *session) handleConvert(ctx context.Context, data json.RawMessage) {
	var req ConvertRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.emitError(EvConversionError, "Failed to convert currency", err)
		return
	}
	pair := models.NewPair(req.From, req.To)
	if !pair.Valid() {
		s.emitError(EvConversionError, "Failed to convert currency", errMissingCodes)
		return
	}
	if err := models.ValidateAmount(float64(req.Amount)); err != nil {
		s.emitError(EvConversionError, "Failed to convert currency", err)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.source.Convert(fetchCtx, float64(req.Amount), pair)
	metrics.RecordFetch("convert", err)
	if err != nil {
		s.emitError(EvConversionError, "Failed to convert currency", err)
		return
	}

	s.emit(Event{
		Type: EvConversionResult,
		Data: ConversionResult{
			Amount:          result.Amount,
			From:            pair.From,
			To:              pair.To,
			Rate:            result.Rate,
			ConvertedAmount: result.ConvertedAmount,
			Date:            utils.FormatDate(result.AsOfDate),
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleSubscribe records the subscription, then fetches one immediate
// rate so the client gets a value before the next broadcast tick. On
// fetch failure the subscription stays recorded and a subscription-error
// is emitted instead of a rate.
func (s *session) handleSubscribe(ctx context.Context, data json.RawMessage) {
	var req PairRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.emitError(EvSubscriptionError, "Failed to subscribe to rates", err)
		return
	}
	pair := models.NewPair(req.From, req.To)
	if !pair.Valid() {
		s.emitError(EvSubscriptionError, "Failed to subscribe to rates", errMissingCodes)
		return
	}

	s.subs.Add(s.id, pair)

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	quote, err := s.source.Latest(fetchCtx, pair)
	metrics.RecordFetch("latest", err)
	if err != nil {
		s.emitError(EvSubscriptionError, "Failed to subscribe to rates", err)
		return
	}
	if !quote.Valid() {
		log.Printf("session %s: discarding invalid initial quote for %s", s.id, pair)
		return
	}

	s.emit(Event{
		Type: EvRateUpdate,
		Data: RateUpdate{
			From:      pair.From,
			To:        pair.To,
			Rate:      quote.Rate,
			Date:      utils.FormatDate(quote.AsOfDate),
			Timestamp: quote.ObservedAt.UTC().Format(time.RFC3339),
		},
	})
}

// handleUnsubscribe drops the subscription. Always succeeds and emits
// nothing; removing a non-existent subscription is a no-op.
func (s *session) handleUnsubscribe(data json.RawMessage) {
	var req PairRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	pair := models.NewPair(req.From, req.To)
	if !pair.Valid() {
		return
	}
	s.subs.Remove(s.id, pair)
}

// handleHistory fetches the trailing 30-day series for a pair and emits
// it, with non-positive rate points filtered out. Never touches the
// registry.
func (s *session) handleHistory(ctx context.Context, data json.RawMessage) {
	var req PairRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.emitError(EvHistoricalError, "Failed to fetch historical rates", err)
		return
	}
	pair := models.NewPair(req.From, req.To)
	if !pair.Valid() {
		s.emitError(EvHistoricalError, "Failed to fetch historical rates", errMissingCodes)
		return
	}

	start, end := utils.TrailingWindow(historyWindowDays)

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	series, err := s.source.History(fetchCtx, pair, start, end)
	metrics.RecordFetch("history", err)
	if err != nil {
		s.emitError(EvHistoricalError, "Failed to fetch historical rates", err)
		return
	}

	s.emit(Event{
		Type: EvHistoricalRates,
		Data: HistoricalRates{
			From:      pair.From,
			To:        pair.To,
			Data:      series.Sanitized(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// finish runs the disconnect cleanup exactly once: the connection leaves
// the hub and every subscription it held is removed. Results of calls
// still in flight are discarded because delivery to an unregistered id
// is a no-op.
func (s *session) finish() {
	s.closeOnce.Do(func() {
		s.hub.Unregister(s.id)
		s.subs.RemoveConnection(s.id)
	})
}

func (s *session) emit(ev Event) bool {
	return s.hub.Deliver(s.id, ev)
}

func (s *session) emitError(evType, message string, err error) {
	s.emit(Event{
		Type: evType,
		Data: ErrorPayload{
			Message: message,
			Error:   err.Error(),
		},
	})
}

var errMissingCodes = &validationError{"both from and to currency codes are required"}

// validationError marks failures rejected locally before any upstream call.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
