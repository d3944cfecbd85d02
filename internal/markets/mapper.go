// Package markets maps provider-specific outcome info strings onto the
// canonical market and selection labels.
package markets

import (
	"fmt"
	"strings"

	"github.com/oddsbridge/engine/internal/store"
	"github.com/shopspring/decimal"
)

// Mapping is a resolved canonical market and selection.
type Mapping struct {
	Family    Family
	Scope     Scope
	Kind      Kind
	Selection string
}

// MarketType renders FAMILY_SCOPE_KIND, e.g. CORNERS_TOTAL_OU.
func (m Mapping) MarketType() string {
	return fmt.Sprintf("%s_%s_%s", m.Family, m.Scope, m.Kind)
}

// Recorder receives first-seen diagnostics. Implementations must not block.
type Recorder interface {
	Record(key, detail string)
}

// sisalLineScale is the threshold above which a Sisal line is read in tenths.
var sisalLineScale = decimal.NewFromInt(50)

// providerRules resolves one provider's info strings.
type providerRules struct {
	codeKey   string
	markets   map[int]market
	selection func(m market, raw string, p Params) (string, bool)
}

// Mapper resolves (provider, info) pairs. It is safe for concurrent use.
type Mapper struct {
	providers map[int]providerRules
	unmapped  Recorder
}

// NewMapper creates a mapper for the known providers. unmapped may be nil.
func NewMapper(unmapped Recorder) *Mapper {
	return &Mapper{
		providers: map[int]providerRules{
			store.BookmakerOneXBet: {
				codeKey:   "betId",
				markets:   oneXBetMarkets,
				selection: oneXBetSelection,
			},
			store.BookmakerSisal: {
				codeKey:   "codiceScommessa",
				markets:   sisalMarkets,
				selection: sisalSelection,
			},
		},
		unmapped: unmapped,
	}
}

// Supports reports whether providerID has a market table.
func (m *Mapper) Supports(providerID int) bool {
	_, ok := m.providers[providerID]
	return ok
}

// Map resolves an info string. Unknown providers, unknown market codes and
// unresolvable selections return false; nothing is ever guessed.
func (m *Mapper) Map(providerID int, info string) (Mapping, bool) {
	rules, ok := m.providers[providerID]
	if !ok {
		return Mapping{}, false
	}

	params, ok := ParseInfo(info)
	if !ok {
		return Mapping{}, false
	}

	code, ok := params.Int(rules.codeKey)
	if !ok {
		return Mapping{}, false
	}

	mk, ok := rules.markets[code]
	if !ok {
		m.report(fmt.Sprintf("%d:%s=%d", providerID, rules.codeKey, code), info)
		return Mapping{}, false
	}

	selection, ok := rules.selection(mk, info, params)
	if !ok {
		return Mapping{}, false
	}

	return Mapping{
		Family:    mk.family,
		Scope:     mk.scope,
		Kind:      mk.kind,
		Selection: selection,
	}, true
}

func (m *Mapper) report(key, info string) {
	if m.unmapped != nil {
		m.unmapped.Record(key, info)
	}
}

// oneXBetSelection reads betValue as the H2H outcome or the OU line.
func oneXBetSelection(mk market, raw string, p Params) (string, bool) {
	value, ok := p.Decimal("betValue")
	if !ok {
		return "", false
	}

	switch mk.kind {
	case HeadToHead:
		return h2hLabel(value)
	case OverUnder:
		return fmt.Sprintf("%s %s", resolveDirection(raw, p), formatLine(value)), true
	}
	return "", false
}

// sisalSelection reads codiceEsito and, for totals, the scaled line.
func sisalSelection(mk market, raw string, p Params) (string, bool) {
	code, ok := p.Int("codiceEsito")
	if !ok {
		return "", false
	}
	es, ok := sisalEsiti[code]
	if !ok || es.kind != mk.kind {
		return "", false
	}

	if es.kind == HeadToHead {
		return es.label, true
	}

	line, ok := p.First("handicap", "line", "spread", "punti")
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s", es.label, formatLine(RescaleLine(line))), true
}

// RescaleLine reads lines above 50 as tenths (65 -> 6.5). This is an
// approximation of the provider's encoding and misreads genuine lines > 50.
func RescaleLine(line decimal.Decimal) decimal.Decimal {
	if line.GreaterThan(sisalLineScale) {
		return line.Div(decimal.NewFromInt(10))
	}
	return line
}

func h2hLabel(value decimal.Decimal) (string, bool) {
	if !value.Equal(value.Truncate(0)) {
		return "", false
	}
	label, ok := h2hLabels[value.IntPart()]
	return label, ok
}

// formatLine renders a line without trailing zeros ("8.50" -> "8.5").
func formatLine(line decimal.Decimal) string {
	return line.String()
}

// directionStrategy extracts Over/Under from one source, or reports no match.
type directionStrategy func(raw string, p Params) (string, bool)

// directionStrategies are tried in order; the last one always matches.
var directionStrategies = []directionStrategy{
	directionFromParams,
	directionFromText,
	func(string, Params) (string, bool) { return "Under", true },
}

func resolveDirection(raw string, p Params) string {
	for _, strategy := range directionStrategies {
		if dir, ok := strategy(raw, p); ok {
			return dir
		}
	}
	return "Under"
}

func directionFromParams(_ string, p Params) (string, bool) {
	for _, key := range []string{"type", "side", "direction", "outcome"} {
		v, ok := p.Get(key)
		if !ok {
			continue
		}
		switch strings.ToLower(v) {
		case "over", "o":
			return "Over", true
		case "under", "u":
			return "Under", true
		}
	}
	return "", false
}

func directionFromText(raw string, _ Params) (string, bool) {
	switch {
	case strings.Contains(raw, "Over"):
		return "Over", true
	case strings.Contains(raw, "Under"):
		return "Under", true
	}
	return "", false
}

// providerDetectors guess the provider of an outcome whose event carries none.
var providerDetectors = []struct {
	key        string
	providerID int
}{
	{"codiceScommessa", store.BookmakerSisal},
	{"betId", store.BookmakerOneXBet},
}

// DetectProvider infers the provider id from the keys present in info.
func DetectProvider(info string) (int, bool) {
	params, ok := ParseInfo(info)
	if !ok {
		return 0, false
	}
	for _, d := range providerDetectors {
		if params.Has(d.key) {
			return d.providerID, true
		}
	}
	return 0, false
}
