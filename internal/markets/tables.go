package markets

// Family is the canonical statistic a market is priced on.
type Family string

const (
	Shots         Family = "SHOTS"
	ShotsOnTarget Family = "SHOTS_ON_TARGET"
	Fouls         Family = "FOULS"
	Offsides      Family = "OFFSIDES"
	Corners       Family = "CORNERS"
)

// Scope is the part of the match a market covers.
type Scope string

const (
	ScopeMatch Scope = "MATCH"
	ScopeTotal Scope = "TOTAL"
	ScopeTeam1 Scope = "TEAM1"
	ScopeTeam2 Scope = "TEAM2"
)

// Kind is the selection structure of a market.
type Kind string

const (
	HeadToHead Kind = "H2H"
	OverUnder  Kind = "OU"
)

type market struct {
	family Family
	scope  Scope
	kind   Kind
}

// 1xbet betId table
var oneXBetMarkets = map[int]market{
	11:  {Corners, ScopeMatch, HeadToHead},
	12:  {Shots, ScopeMatch, HeadToHead},
	13:  {ShotsOnTarget, ScopeMatch, HeadToHead},
	14:  {Fouls, ScopeMatch, HeadToHead},
	751: {Offsides, ScopeMatch, HeadToHead},

	739: {Corners, ScopeTotal, OverUnder},
	740: {Corners, ScopeTotal, OverUnder},
	741: {Corners, ScopeTotal, OverUnder},
	742: {Corners, ScopeTotal, OverUnder},

	7778: {ShotsOnTarget, ScopeTotal, OverUnder},
	7779: {ShotsOnTarget, ScopeTotal, OverUnder},
	7786: {Shots, ScopeTotal, OverUnder},
	7787: {Shots, ScopeTotal, OverUnder},
	7792: {Fouls, ScopeTotal, OverUnder},
	7793: {Fouls, ScopeTotal, OverUnder},
	7798: {Offsides, ScopeTotal, OverUnder},
	7799: {Offsides, ScopeTotal, OverUnder},
}

// Sisal codiceScommessa table
var sisalMarkets = map[int]market{
	127:   {Corners, ScopeMatch, HeadToHead},
	9942:  {Corners, ScopeTotal, OverUnder},
	28319: {ShotsOnTarget, ScopeTotal, OverUnder},
	28320: {Shots, ScopeTotal, OverUnder},
	28321: {Fouls, ScopeTotal, OverUnder},
	28322: {Offsides, ScopeTotal, OverUnder},
}

type esito struct {
	kind  Kind
	label string
}

// Sisal codiceEsito table. 0 and 3 are both the draw.
var sisalEsiti = map[int]esito{
	0:  {HeadToHead, "X"},
	1:  {HeadToHead, "1"},
	2:  {HeadToHead, "2"},
	3:  {HeadToHead, "X"},
	9:  {OverUnder, "Over"},
	14: {OverUnder, "Under"},
}

// h2hLabels maps the small-integer outcome value shared by both providers.
var h2hLabels = map[int64]string{
	0: "X",
	1: "1",
	2: "2",
	3: "X",
}
