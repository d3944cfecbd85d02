package markets

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Params holds the key=value pairs of an outcome info string. Keys are stored
// lower-cased; the first occurrence of a key wins.
type Params map[string]string

// ParseInfo splits an info string such as "eventId=1&betId=11&betValue=1".
// It returns false when no key=value pair is present.
func ParseInfo(info string) (Params, bool) {
	info = strings.TrimSpace(info)
	info = strings.TrimPrefix(info, "?")
	if info == "" {
		return nil, false
	}

	params := make(Params)
	for _, pair := range strings.Split(info, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, seen := params[key]; seen {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}

	if len(params) == 0 {
		return nil, false
	}
	return params, true
}

// Get looks a key up case-insensitively. Empty values count as absent.
func (p Params) Get(key string) (string, bool) {
	v, ok := p[strings.ToLower(key)]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Has reports whether key is present, even with an empty value.
func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Int parses the value of key as a base-10 integer.
func (p Params) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decimal parses the value of key as a non-negative decimal.
func (p Params) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := p.Get(key)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// First returns the first key in keys that parses as a decimal.
func (p Params) First(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		if d, ok := p.Decimal(key); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}
