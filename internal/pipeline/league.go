package pipeline

import "strings"

// DefaultLeaguePatterns are the Serie A spellings seen on the feed.
var DefaultLeaguePatterns = []string{
	"italy. serie a",
	"italy serie a",
	"serie a",
	"италия. серия а",
	"italian serie a",
}

// LeagueFilter accepts events whose league contains one of its patterns.
type LeagueFilter struct {
	patterns []string
	all      bool
}

// NewLeagueFilter builds a filter. A "*" pattern or an empty list accepts
// every league.
func NewLeagueFilter(patterns []string) *LeagueFilter {
	f := &LeagueFilter{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch p {
		case "":
			continue
		case "*":
			f.all = true
		}
		f.patterns = append(f.patterns, p)
	}
	if len(f.patterns) == 0 {
		f.all = true
	}
	return f
}

// Accept reports whether league passes the filter. An empty league never
// passes unless the filter is disabled.
func (f *LeagueFilter) Accept(league string) bool {
	if f.all {
		return true
	}
	league = strings.ToLower(strings.TrimSpace(league))
	if league == "" {
		return false
	}
	for _, p := range f.patterns {
		if strings.Contains(league, p) {
			return true
		}
	}
	return false
}

// Disabled reports whether every league is accepted.
func (f *LeagueFilter) Disabled() bool {
	return f.all
}
