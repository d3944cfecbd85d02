package markets

import "testing"

func TestParseInfo(t *testing.T) {
	p, ok := ParseInfo("?eventId=123&&betId=11&betValue=1&note=a=b&eventId=999&flag")
	if !ok {
		t.Fatal("expected params")
	}

	if v, _ := p.Get("EVENTID"); v != "123" {
		t.Errorf("expected first eventId to win, got %q", v)
	}
	if v, _ := p.Get("note"); v != "a=b" {
		t.Errorf("expected value containing '=', got %q", v)
	}
	if n, ok := p.Int("betId"); !ok || n != 11 {
		t.Errorf("Int(betId) = %d, %v", n, ok)
	}
	if p.Has("flag") {
		t.Error("bare tokens without '=' are not pairs")
	}
}

func TestParseInfoEmpty(t *testing.T) {
	for _, info := range []string{"", "   ", "&&&", "noequals"} {
		if _, ok := ParseInfo(info); ok {
			t.Errorf("ParseInfo(%q) should report no pairs", info)
		}
	}
}

func TestParamsDecimal(t *testing.T) {
	p, _ := ParseInfo("a=8.50&b=-1&c=x&d=")

	if d, ok := p.Decimal("a"); !ok || d.String() != "8.5" {
		t.Errorf("Decimal(a) = %s, %v", d, ok)
	}
	for _, key := range []string{"b", "c", "d", "missing"} {
		if _, ok := p.Decimal(key); ok {
			t.Errorf("Decimal(%s) should fail", key)
		}
	}
	if d, ok := p.First("missing", "c", "a"); !ok || d.String() != "8.5" {
		t.Errorf("First = %s, %v", d, ok)
	}
}
