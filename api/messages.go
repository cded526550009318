package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/seenimoa/fxstream/pkg/models"
)

// Inbound message types accepted over the websocket channel.
const (
	MsgConvertCurrency    = "convert-currency"
	MsgSubscribeRates     = "subscribe-rates"
	MsgUnsubscribeRates   = "unsubscribe-rates"
	MsgGetHistoricalRates = "get-historical-rates"
)

// Outbound event types emitted to clients.
const (
	EvConversionResult  = "conversion-result"
	EvConversionError   = "conversion-error"
	EvRateUpdate        = "rate-update"
	EvSubscriptionError = "subscription-error"
	EvHistoricalRates   = "historical-rates"
	EvHistoricalError   = "historical-error"
)

// Event is a message sent to a websocket client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundMessage is a raw client message before payload decoding.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Amount accepts both JSON numbers and numeric strings, since clients
// send conversion amounts straight from form inputs.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		return fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("amount %q is not numeric", s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("amount is not numeric")
	}
	*a = Amount(f)
	return nil
}

// ConvertRequest is the payload of a convert-currency message.
type ConvertRequest struct {
	Amount Amount `json:"amount"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// PairRequest is the payload of subscribe-rates, unsubscribe-rates and
// get-historical-rates messages.
type PairRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ConversionResult is the payload of a conversion-result event.
type ConversionResult struct {
	Amount          float64 `json:"amount"`
	From            string  `json:"from"`
	To              string  `json:"to"`
	Rate            float64 `json:"rate"`
	ConvertedAmount float64 `json:"convertedAmount"`
	Date            string  `json:"date"`
	Timestamp       string  `json:"timestamp"`
}

// RateUpdate is the payload of a rate-update event, both for the
// immediate post-subscribe quote and for scheduled broadcasts.
type RateUpdate struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Rate      float64 `json:"rate"`
	Date      string  `json:"date"`
	Timestamp string  `json:"timestamp"`
}

// HistoricalRates is the payload of a historical-rates event.
type HistoricalRates struct {
	From      string                  `json:"from"`
	To        string                  `json:"to"`
	Data      models.HistoricalSeries `json:"data"`
	Timestamp string                  `json:"timestamp"`
}

// ErrorPayload is the payload of every *-error event.
type ErrorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
