// Package matching derives cross-provider match identities from raw event
// names and start times.
package matching

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transliteration covers Cyrillic and Latin letters that NFD cannot fold.
var transliteration = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'і': "i", 'ї': "yi", 'є': "ye", 'ґ': "g",
	'ø': "o", 'ł': "l", 'đ': "d", 'ß': "ss", 'æ': "ae", 'œ': "oe", 'ı': "i",
}

// legalTokens are dropped as whole words.
var legalTokens = map[string]bool{
	"fc": true, "ac": true, "ssc": true, "as": true, "ss": true, "afc": true,
	"sc": true, "cf": true, "ud": true, "us": true, "fk": true, "bc": true,
	"cd": true,
}

// Normalizer canonicalizes team names. It is read-only after construction and
// safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
	known   map[string]bool
}

// aliasEntry is one cleaned alias; fromFile marks entries loaded from an
// alias file, which win over built-ins when the two disagree.
type aliasEntry struct {
	target   string
	fromFile bool
}

// NewNormalizer builds a normalizer from the built-in tables plus file, which
// may be nil. Alias keys and targets are normalized, cycles are collapsed and
// chains are resolved so that Normalize is idempotent.
func NewNormalizer(file *AliasFile) *Normalizer {
	n := &Normalizer{
		aliases: make(map[string]string),
		known:   make(map[string]bool),
	}

	entries := make(map[string]aliasEntry, len(builtinAliases))
	addAliases(entries, builtinAliases, false)
	canonical := append([]string(nil), canonicalTeams...)
	if file != nil {
		addAliases(entries, file.Aliases, true)
		canonical = append(canonical, file.Canonical...)
	}

	breakCycles(entries)
	for key, e := range entries {
		n.aliases[key] = e.target
	}

	// Resolve chains so every target is a fixed point of lookup.
	for key, target := range n.aliases {
		seen := map[string]bool{key: true}
		for {
			next, ok := n.lookup(target)
			if !ok || next == target || seen[next] {
				break
			}
			seen[target] = true
			target = next
		}
		n.aliases[key] = target
	}

	for _, name := range canonical {
		if c := clean(name); c != "" {
			n.known[n.resolve(c)] = true
		}
	}
	for _, target := range n.aliases {
		n.known[target] = true
	}

	return n
}

func addAliases(entries map[string]aliasEntry, raw map[string]string, fromFile bool) {
	for k, v := range raw {
		key, target := clean(k), clean(v)
		if key == "" || target == "" || key == target {
			continue
		}
		entries[key] = aliasEntry{target: target, fromFile: fromFile}
	}
}

// step follows one alias the way lookup does and returns the entry key used.
func step(entries map[string]aliasEntry, name string) (next, key string, ok bool) {
	if e, found := entries[name]; found {
		return e.target, name, true
	}
	compact := strings.ReplaceAll(name, " ", "")
	if e, found := entries[compact]; found {
		return e.target, compact, true
	}
	return "", "", false
}

// breakCycles removes one alias from every cycle. The surviving target is
// the first file entry's target in the cycle, else the smallest member name.
func breakCycles(entries map[string]aliasEntry) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, start := range keys {
		if _, ok := entries[start]; !ok {
			continue
		}

		index := map[string]int{start: 0}
		path := []string{start}
		for cur := start; ; {
			next, _, ok := step(entries, cur)
			if !ok || next == cur {
				break
			}
			i, seen := index[next]
			if !seen {
				index[next] = len(path)
				path = append(path, next)
				cur = next
				continue
			}

			cycle := path[i:]
			canonical := ""
			for _, member := range cycle {
				if e, found := entryFor(entries, member); found && e.fromFile {
					canonical = e.target
					break
				}
			}
			if canonical == "" {
				canonical = cycle[0]
				for _, member := range cycle[1:] {
					if member < canonical {
						canonical = member
					}
				}
			}

			_, key, _ := step(entries, canonical)
			delete(entries, key)
			slog.Warn("team_alias_cycle", "members", cycle, "canonical", canonical)
			break
		}
	}
}

func entryFor(entries map[string]aliasEntry, name string) (aliasEntry, bool) {
	_, key, ok := step(entries, name)
	if !ok {
		return aliasEntry{}, false
	}
	return entries[key], true
}

// Normalize returns the canonical form of a raw team name. Empty input, or
// input made only of punctuation and legal-entity tokens, returns "".
func (n *Normalizer) Normalize(name string) string {
	c := clean(name)
	if c == "" {
		return ""
	}
	return n.resolve(c)
}

// Known reports whether a normalized name is a canonical entry or an alias
// target.
func (n *Normalizer) Known(normalized string) bool {
	return n.known[normalized]
}

// AliasCount returns the number of alias entries.
func (n *Normalizer) AliasCount() int {
	return len(n.aliases)
}

func (n *Normalizer) resolve(cleaned string) string {
	if target, ok := n.lookup(cleaned); ok {
		return target
	}
	return cleaned
}

// lookup tries the exact form, then the form without spaces.
func (n *Normalizer) lookup(cleaned string) (string, bool) {
	if target, ok := n.aliases[cleaned]; ok {
		return target, true
	}
	if target, ok := n.aliases[strings.ReplaceAll(cleaned, " ", "")]; ok {
		return target, true
	}
	return "", false
}

// clean applies every rule except alias resolution.
func clean(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}

	s = transliterate(s)
	s = foldDiacritics(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !legalTokens[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if latin, ok := transliteration[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
