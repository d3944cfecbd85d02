// Package ingest handles the odds feed connection and frame decoding.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a decoded feed frame.
type Kind string

const (
	KindAuthorized   Kind = "authorized"
	KindSubscribed   Kind = "subscribed"
	KindEvents       Kind = "bookmaker_events"
	KindOutcomes     Kind = "outcomes"
	KindError        Kind = "error"
	KindPong         Kind = "pong"
	KindUnrecognized Kind = "unrecognized"
)

// startTimeFormat matches the feed's ISO rendering with milliseconds.
const startTimeFormat = "2006-01-02T15:04:05.000Z"

// minOutcomeFields is the shortest positional outcome that carries a price.
const minOutcomeFields = 12

// Envelope is the wire frame {"cmd": ..., "msg": ...}.
type Envelope struct {
	Cmd string          `json:"cmd"`
	Msg json.RawMessage `json:"msg,omitempty"`
}

// EventDefinition describes one provider event.
type EventDefinition struct {
	EventID      string
	ProviderID   int
	Name         string
	RawStartTime string
	League       string
}

// Outcome is one price update. Info is the provider's opaque key=value
// string, passed through untouched.
type Outcome struct {
	OutcomeID string
	EventID   string
	Period    string
	Price     float64
	Info      string
}

// Message is a decoded frame. Only the fields for its Kind are set.
type Message struct {
	Kind     Kind
	Command  string
	Events   []EventDefinition
	Outcomes []Outcome
	Text     string

	// Skipped counts batch items that matched no known shape.
	Skipped int
}

// Decode parses one frame. It fails only when the frame itself is not a JSON
// envelope; malformed items inside a batch are skipped and counted.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	msg := Message{Command: env.Cmd}

	switch Kind(env.Cmd) {
	case KindAuthorized, KindSubscribed:
		msg.Kind = Kind(env.Cmd)
	case KindPong, KindError:
		msg.Kind = Kind(env.Cmd)
		msg.Text = payloadText(env.Msg)
	case KindEvents:
		msg.Kind = KindEvents
		items, skipped := batchItems(env.Msg)
		msg.Skipped = skipped
		for _, item := range items {
			ev, ok := decodeEvent(item)
			if !ok {
				msg.Skipped++
				continue
			}
			msg.Events = append(msg.Events, ev)
		}
	case KindOutcomes:
		msg.Kind = KindOutcomes
		items, skipped := batchItems(env.Msg)
		msg.Skipped = skipped
		for _, item := range items {
			out, ok := decodeOutcome(item)
			if !ok {
				msg.Skipped++
				continue
			}
			msg.Outcomes = append(msg.Outcomes, out)
		}
	default:
		msg.Kind = KindUnrecognized
	}

	return msg, nil
}

// shape is the JSON type of a payload or item, decided from its first byte.
type shape int

const (
	shapeInvalid shape = iota
	shapeArray
	shapeObject
	shapeString
	shapeNull
)

func shapeOf(raw json.RawMessage) shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return shapeNull
	}
	switch raw[0] {
	case '[':
		return shapeArray
	case '{':
		return shapeObject
	case '"':
		return shapeString
	case 'n':
		return shapeNull
	}
	return shapeInvalid
}

// unwrapString decodes a legacy JSON-encoded string payload once.
func unwrapString(raw json.RawMessage) (json.RawMessage, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	inner := json.RawMessage(strings.TrimSpace(s))
	switch shapeOf(inner) {
	case shapeArray, shapeObject:
		return inner, true
	}
	return nil, false
}

// batchItems splits a payload into items. A single object is a one-item
// batch. Returns the count of payloads that could not be split.
func batchItems(raw json.RawMessage) ([]json.RawMessage, int) {
	switch shapeOf(raw) {
	case shapeNull:
		return nil, 0
	case shapeString:
		inner, ok := unwrapString(raw)
		if !ok {
			return nil, 1
		}
		raw = inner
	}

	switch shapeOf(raw) {
	case shapeArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 1
		}
		return items, 0
	case shapeObject:
		return []json.RawMessage{raw}, 0
	}
	return nil, 1
}

// itemFields resolves an item to either positional fields or an object.
func itemFields(item json.RawMessage) ([]json.RawMessage, map[string]json.RawMessage, bool) {
	if shapeOf(item) == shapeString {
		inner, ok := unwrapString(item)
		if !ok {
			return nil, nil, false
		}
		item = inner
	}

	switch shapeOf(item) {
	case shapeArray:
		var fields []json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, nil, false
		}
		return fields, nil, true
	case shapeObject:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, nil, false
		}
		return nil, obj, true
	}
	return nil, nil, false
}

func decodeEvent(item json.RawMessage) (EventDefinition, bool) {
	fields, obj, ok := itemFields(item)
	if !ok {
		return EventDefinition{}, false
	}

	var ev EventDefinition
	var hasID, hasProvider bool

	if fields != nil {
		ev.EventID, hasID = idString(field(fields, 0))
		ev.ProviderID, hasProvider = intValue(field(fields, 1))
		ev.RawStartTime = startTime(field(fields, 3))
		ev.Name, _ = stringValue(field(fields, 4))
		ev.League = firstString(field(fields, 6), field(fields, 7))
	} else {
		ev.EventID, hasID = idString(lookup(obj, "id", "eventId"))
		ev.ProviderID, hasProvider = intValue(lookup(obj, "bookmaker_id", "bookmakerId"))
		ev.RawStartTime = startTime(lookup(obj, "starts_at", "startsAt"))
		ev.Name, _ = stringValue(lookup(obj, "name", "eventName"))
		ev.League = firstString(obj["league"], obj["leagueName"])
	}

	if !hasID || !hasProvider {
		return EventDefinition{}, false
	}
	if ev.Name == "" {
		ev.Name = "Event " + ev.EventID
	}
	return ev, true
}

func decodeOutcome(item json.RawMessage) (Outcome, bool) {
	fields, obj, ok := itemFields(item)
	if !ok {
		return Outcome{}, false
	}

	var out Outcome
	var hasEvent, hasPrice bool

	if fields != nil {
		if len(fields) < minOutcomeFields {
			return Outcome{}, false
		}
		out.OutcomeID, _ = idString(field(fields, 0))
		out.EventID, hasEvent = idString(field(fields, 1))
		out.Period, _ = idString(field(fields, 2))
		out.Price, hasPrice = floatValue(field(fields, 11))
		out.Info, _ = stringValue(field(fields, 15))
	} else {
		out.OutcomeID, _ = idString(lookup(obj, "id", "outcomeId"))
		out.EventID, hasEvent = idString(lookup(obj, "bookmaker_event_id", "bookmakerEventId", "eventId"))
		out.Period, _ = idString(lookup(obj, "period", "periodIdentifier"))
		out.Price, hasPrice = floatValue(lookup(obj, "odds", "price"))
		out.Info, _ = stringValue(lookup(obj, "info", "marketAndBetTypeInfo"))
	}

	if !hasEvent || !hasPrice {
		return Outcome{}, false
	}
	return out, true
}

// field returns fields[i], or nil when out of range.
func field(fields []json.RawMessage, i int) json.RawMessage {
	if i < len(fields) {
		return fields[i]
	}
	return nil
}

// lookup returns the first present, non-null key in order.
func lookup(obj map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		if v, ok := obj[key]; ok && shapeOf(v) != shapeNull {
			return v
		}
	}
	return nil
}

func stringValue(raw json.RawMessage) (string, bool) {
	if shapeOf(raw) != shapeString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func firstString(values ...json.RawMessage) string {
	for _, v := range values {
		if s, ok := stringValue(v); ok {
			return s
		}
	}
	return ""
}

// idString renders a string or numeric id as a decimal string.
func idString(raw json.RawMessage) (string, bool) {
	if s, ok := stringValue(raw); ok {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	f, err := n.Float64()
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func floatValue(raw json.RawMessage) (float64, bool) {
	s, ok := idString(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func intValue(raw json.RawMessage) (int, bool) {
	f, ok := floatValue(raw)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// startTime renders unix seconds as ISO 8601 and passes strings through.
func startTime(raw json.RawMessage) string {
	if shapeOf(raw) == shapeString {
		s, _ := stringValue(raw)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return unixToISO(secs)
		}
		return s
	}
	secs, ok := floatValue(raw)
	if !ok {
		return ""
	}
	return unixToISO(secs)
}

func unixToISO(secs float64) string {
	if secs <= 0 {
		return ""
	}
	return time.UnixMilli(int64(secs * 1000)).UTC().Format(startTimeFormat)
}

// payloadText returns a string payload as-is and anything else as raw JSON.
func payloadText(raw json.RawMessage) string {
	if s, ok := stringValue(raw); ok {
		return s
	}
	return strings.TrimSpace(string(raw))
}
