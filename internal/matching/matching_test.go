package matching

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedBuilder(t *testing.T, now time.Time) *KeyBuilder {
	t.Helper()
	b := NewKeyBuilder(NewNormalizer(nil), 30*time.Minute)
	b.now = func() time.Time { return now }
	return b
}

func TestParseEventName(t *testing.T) {
	tests := []struct {
		name     string
		wantHome string
		wantAway string
		wantOK   bool
	}{
		{"Napoli - Juventus", "Napoli", "Juventus", true},
		{"Inter – Milan", "Inter", "Milan", true},
		{"Roma — Lazio", "Roma", "Lazio", true},
		{"Genoa vs Torino", "Genoa", "Torino", true},
		{"Lecce v Monza", "Lecce", "Monza", true},
		{"  Como  -  Parma  ", "Como", "Parma", true},
		{"Napoli", "", "", false},
		{"Napoli - ", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		home, away, ok := ParseEventName(tt.name)
		if home != tt.wantHome || away != tt.wantAway || ok != tt.wantOK {
			t.Errorf("ParseEventName(%q) = %q, %q, %v", tt.name, home, away, ok)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("  Napoli   -  Juventus "); got != "Napoli - Juventus" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := DisplayName("Napoli"); got != "Napoli" {
		t.Errorf("expected raw fallback, got %q", got)
	}
	if got := DisplayName("Манчестер Сити vs Ювентус"); got != "Манчестер Сити - Ювентус" {
		t.Errorf("display name must keep raw sides, got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"Napoli", "napoli"},
		{"SSC Napoli", "napoli"},
		{"A.C. Milan", "milan"},
		{"Inter Milan", "inter"},
		{"FC Internazionale", "inter"},
		{"Ювентус", "juventus"},
		{"Манчестер Сити", "manchester city"},
		{"Манчестер Юнайтед", "manchester united"},
		{"Кальяри", "cagliari"},
		{"Дженоа", "genoa"},
		{"Лечче", "lecce"},
		{"Hellas Verona FC", "verona"},
		{"Atlético Madrid", "atletico madrid"},
		{"Bodø/Glimt", "bodoglimt"},
		{"Al-Hilal", "alhilal"},
		{"  Udinese   Calcio ", "udinese calcio"},
		{"FC", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(&AliasFile{
		Aliases: map[string]string{
			"neapol":   "SSC Napoli",
			"man city": "manchester siti",
			"juve":     "Yuventus",
		},
	})

	inputs := []string{
		"Napoli", "neapol", "Man City", "man-city", "Juve", "Ювентус",
		"Manchester Siti", "manchestersiti", "Sassuolo", "Bayern München",
		"AS Roma", "Lazio Roma", "FC Köln",
	}
	for key := range builtinAliases {
		inputs = append(inputs, key)
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}

	if got := n.Normalize("man city"); got != "manchester city" {
		t.Errorf("expected chained alias to resolve, got %q", got)
	}
	if got := n.Normalize("neapol"); got != "napoli" {
		t.Errorf("expected alias target to be canonicalized, got %q", got)
	}
}

func TestNormalizeCollapsesAliasCycles(t *testing.T) {
	tests := []struct {
		name    string
		aliases map[string]string
		inputs  []string
		want    string
	}{
		{
			// The file reverses a built-in alias; the file entry wins.
			name:    "file reverses built-in",
			aliases: map[string]string{"inter": "inter milan"},
			inputs:  []string{"Inter", "Inter Milan", "Internazionale", "FC Internazionale"},
			want:    "inter milan",
		},
		{
			name:    "two-way cycle in file",
			aliases: map[string]string{"a x": "bx", "bx": "a x"},
			inputs:  []string{"a x", "bx"},
			want:    "bx",
		},
		{
			name:    "three-way cycle in file",
			aliases: map[string]string{"alpha": "beta", "beta": "gamma", "gamma": "alpha"},
			inputs:  []string{"alpha", "beta", "gamma"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(&AliasFile{Aliases: tt.aliases})

			first := n.Normalize(tt.inputs[0])
			if tt.want != "" && first != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.inputs[0], first, tt.want)
			}
			for _, in := range tt.inputs {
				once := n.Normalize(in)
				if once != first {
					t.Errorf("Normalize(%q) = %q, want %q", in, once, first)
				}
				if twice := n.Normalize(once); twice != once {
					t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
				}
			}
		})
	}
}

func TestKnown(t *testing.T) {
	n := NewNormalizer(&AliasFile{Canonical: []string{"Pro Vercelli"}})

	for _, name := range []string{"napoli", "manchester city", "pro vercelli"} {
		if !n.Known(name) {
			t.Errorf("expected %q to be known", name)
		}
	}
	if n.Known("dinamo zagreb") {
		t.Error("unexpected known team")
	}
}

func TestRoundTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 20, 47, 12, 0, time.UTC)
	b := fixedBuilder(t, now)

	tests := []struct {
		raw  string
		want string
	}{
		{"2026-01-10T19:45:00Z", "2026-01-10T19:30"},
		{"2026-01-10T19:45:00.000Z", "2026-01-10T19:30"},
		{"2026-01-10T21:15:00+02:00", "2026-01-10T19:00"},
		{"2026-01-10 19:29:59", "2026-01-10T19:00"},
		{"1768073400", "2026-01-10T19:30"},
		{"1768073400000", "2026-01-10T19:30"},
		{"", "2026-03-14T20:30"},
		{"not a date", "2026-03-14T20:30"},
		{"1970-01-01T00:00:00Z", "2026-03-14T20:30"},
		{"0", "2026-03-14T20:30"},
	}
	for _, tt := range tests {
		if got := b.RoundTime(tt.raw); got != tt.want {
			t.Errorf("RoundTime(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMatchKeyStableAcrossProviders(t *testing.T) {
	b := fixedBuilder(t, time.Now())

	first, ok := b.MatchKey("Манчестер Сити - Ювентус", "2026-01-10T19:45:00Z")
	if !ok {
		t.Fatal("expected key")
	}
	second, ok := b.MatchKey("Manchester City vs Juventus FC", "2026-01-10T19:31:00.000Z")
	if !ok {
		t.Fatal("expected key")
	}

	if first != second {
		t.Errorf("keys differ: %q vs %q", first, second)
	}
	if first != "manchester city_juventus_2026-01-10T19:30" {
		t.Errorf("unexpected key %q", first)
	}

	again, _ := b.MatchKey("Манчестер Сити - Ювентус", "2026-01-10T19:45:00Z")
	if again != first {
		t.Errorf("key not stable across calls: %q vs %q", again, first)
	}
}

func TestMatchKeyFallsBackToCurrentBucket(t *testing.T) {
	now := time.Date(2026, 5, 2, 18, 10, 0, 0, time.UTC)
	b := fixedBuilder(t, now)

	key, ok := b.MatchKey("Napoli - Juventus", "1900-01-01T00:00:00Z")
	if !ok {
		t.Fatal("expected a key despite an implausible timestamp")
	}
	if key != "napoli_juventus_2026-05-02T18:00" {
		t.Errorf("unexpected key %q", key)
	}

	if _, ok := b.MatchKey("Napoli", "2026-05-02T18:00:00Z"); ok {
		t.Error("expected no key without a separator")
	}
	if _, ok := b.MatchKey("FC - Juventus", ""); ok {
		t.Error("expected no key when a side normalizes to empty")
	}
}

func TestLoadAliasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := strings.Join([]string{
		"canonical:",
		"  - pro vercelli",
		"aliases:",
		"  neapol: napoli",
		"  \"ювентус турин\": juventus",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := LoadAliasFile(path)
	if err != nil {
		t.Fatalf("LoadAliasFile: %v", err)
	}
	if len(file.Canonical) != 1 || len(file.Aliases) != 2 {
		t.Fatalf("unexpected file %+v", file)
	}

	n := NewNormalizer(file)
	if got := n.Normalize("Ювентус Турин"); got != "juventus" {
		t.Errorf("file alias not applied, got %q", got)
	}

	if _, err := LoadAliasFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
