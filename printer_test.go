package ruledbg

import (
	"strings"
	"testing"
)

func pretty(t *testing.T, src string) string {
	t.Helper()
	out, err := Pretty(src)
	if err != nil {
		t.Fatalf("pretty: %v\nsource:\n%s", err, src)
	}
	return out
}

func TestPrettyCanonicalizes(t *testing.T) {
	// Two-space indentation, blank lines and comments all normalize away.
	src := strings.Join([]string{
		"if x:",
		"  y = 1",
		"",
		"# choose the fallback",
		"else:",
		"  y = 2",
	}, "\n") + "\n"
	want := strings.Join([]string{
		"if x:",
		"    y = 1",
		"else:",
		"    y = 2",
	}, "\n") + "\n"
	if got := pretty(t, src); got != want {
		t.Fatalf("canonical form:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrettyIdempotent(t *testing.T) {
	src := strings.Join([]string{
		"class Test:",
		"    age = 12",
		"    name = 'x'",
		"t = Test()",
		"total = 0",
		"for n in [1, 2, 3]:",
		"    if n % 2 == 0:",
		"        total = total + n",
		"    elif not n == 1:",
		"        break",
		"else:",
		"    total = -1",
		"m = {'k': [1, 2.5], 'n': None}",
		"log_message('done', level='info')",
	}, "\n") + "\n"

	once := pretty(t, src)
	twice := pretty(t, once)
	if once != twice {
		t.Fatalf("not idempotent:\nonce:\n%s\ntwice:\n%s", once, twice)
	}
}

func TestPrettyRendersForElse(t *testing.T) {
	got := pretty(t, "for x in xs:\n    y = x\nelse:\n    y = 0\n")
	want := "for x in xs:\n    y = x\nelse:\n    y = 0\n"
	if got != want {
		t.Fatalf("got:\n%s", got)
	}
}

func TestFormatExprStatements(t *testing.T) {
	cases := []struct{ src, want string }{
		{"a = b = 5\n", "a = b = 5"},
		{"t.age = 4\n", "t.age = 4"},
		{"xs[0] = 9\n", "xs[0] = 9"},
		{"x = not done\n", "x = not done"},
		{"x = -n\n", "x = -n"},
		{"x = a < b and b < c\n", "x = a < b and b < c"},
		{"x = 'it' in names\n", `x = "it" in names`},
		{"f(1, k=2)\n", "f(1, k=2)"},
		{"x = [1, [2, 3]]\n", "x = [1, [2, 3]]"},
		{"x = {'a': 1}\n", `x = {"a": 1}`},
		{"pass\n", "pass"},
	}
	for _, c := range cases {
		st := parse(t, c.src)[1].(S)
		if got := FormatExpr(st); got != c.want {
			t.Fatalf("FormatExpr(%q): want %q, got %q", c.src, c.want, got)
		}
	}
}

func TestFormatExprQuotesStrings(t *testing.T) {
	st := parse(t, "s = 'a\\nb'\n")[1].(S)
	if got := FormatExpr(st); got != `s = "a\nb"` {
		t.Fatalf("escapes re-encode: %q", got)
	}
}

func TestFormatValueDisplayForms(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, "None"},
		{Bool(true), "True"},
		{Int(-3), "-3"},
		{Num(2.5), "2.5"},
		{Str("hi"), `"hi"`},
		{Arr([]Value{Int(1), Str("a")}), `[1, "a"]`},
	}
	for _, c := range cases {
		if got := FormatValue(c.v); got != c.want {
			t.Fatalf("FormatValue(%v): want %q, got %q", c.v, c.want, got)
		}
	}

	m := NewMapObject()
	m.Set("k", Int(1))
	if got := FormatValue(MapVal(m)); got != `{"k": 1}` {
		t.Fatalf("map display: %q", got)
	}

	cls := &Class{Name: "T", Defaults: NewMapObject()}
	cls.Defaults.Set("age", Int(1))
	if got := FormatValue(Value{Tag: VTRecord, Data: NewRecord(cls)}); got != "<T age=1>" {
		t.Fatalf("record display: %q", got)
	}
}
