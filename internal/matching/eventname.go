package matching

import "strings"

// eventSeparators are tried in order; the first one present wins.
var eventSeparators = []string{" - ", " – ", " — ", " vs ", " v "}

// ParseEventName splits "Home - Away" into its sides. It fails when no
// separator is present or either side is empty.
func ParseEventName(name string) (home, away string, ok bool) {
	for _, sep := range eventSeparators {
		if !strings.Contains(name, sep) {
			continue
		}
		parts := strings.Split(name, sep)
		home = strings.TrimSpace(parts[0])
		away = strings.TrimSpace(parts[len(parts)-1])
		if home == "" || away == "" {
			return "", "", false
		}
		return home, away, true
	}
	return "", "", false
}

// DisplayName returns "Home - Away" from the raw sides, or name unchanged when
// it cannot be split.
func DisplayName(name string) string {
	home, away, ok := ParseEventName(name)
	if !ok {
		return name
	}
	return home + " - " + away
}
