package graph

import "testing"

func evalGuard(t *testing.T, src string, mem map[string]any) bool {
	t.Helper()
	g, err := parseGuard(src)
	if err != nil {
		t.Fatalf("parseGuard(%q): %v", src, err)
	}
	return g.Evaluate(mem)
}

func TestParseGuard_Equality(t *testing.T) {
	if !evalGuard(t, `status == "ok"`, map[string]any{"status": "ok"}) {
		t.Fatal("expected status == \"ok\" to be true")
	}
	if evalGuard(t, `status == "ok"`, map[string]any{"status": "bad"}) {
		t.Fatal("expected status == \"ok\" to be false")
	}
}

func TestParseGuard_Inequality(t *testing.T) {
	if !evalGuard(t, `status != "ok"`, map[string]any{"status": "bad"}) {
		t.Fatal("expected status != \"ok\" to be true")
	}
	if evalGuard(t, `status != "ok"`, map[string]any{"status": "ok"}) {
		t.Fatal("expected status != \"ok\" to be false")
	}
}

func TestParseGuard_InSet(t *testing.T) {
	mem := map[string]any{"route": "b"}
	if !evalGuard(t, `route in {"a", "b", "c"}`, mem) {
		t.Fatal("expected route in set to be true")
	}
	if evalGuard(t, `route in {"x", "y"}`, mem) {
		t.Fatal("expected route not in set to be false")
	}
}

func TestParseGuard_AndOrNot(t *testing.T) {
	mem := map[string]any{"a": "1", "b": "2"}
	if !evalGuard(t, `a == "1" and b == "2"`, mem) {
		t.Fatal("expected and of two true comparisons to be true")
	}
	if evalGuard(t, `a == "1" and b == "9"`, mem) {
		t.Fatal("expected and with one false comparison to be false")
	}
	if !evalGuard(t, `a == "9" or b == "2"`, mem) {
		t.Fatal("expected or with one true comparison to be true")
	}
	if !evalGuard(t, `not a == "9"`, mem) {
		t.Fatal("expected not of a false comparison to be true")
	}
}

func TestParseGuard_Parens(t *testing.T) {
	mem := map[string]any{"a": "1", "b": "2", "c": "3"}
	if !evalGuard(t, `(a == "1" or a == "9") and c == "3"`, mem) {
		t.Fatal("expected parenthesized expression to evaluate true")
	}
	if evalGuard(t, `(a == "9" or b == "9") and c == "3"`, mem) {
		t.Fatal("expected parenthesized expression to evaluate false")
	}
}

func TestParseGuard_UnknownKeyIsFalse(t *testing.T) {
	if evalGuard(t, `missing == "x"`, map[string]any{}) {
		t.Fatal("unknown memory key must evaluate to false")
	}
	if evalGuard(t, `missing != "x"`, map[string]any{}) {
		t.Fatal("unknown memory key must evaluate to false even under !=")
	}
}

func TestParseGuard_NumericAndBoolStringify(t *testing.T) {
	mem := map[string]any{"count": float64(3), "done": true}
	if !evalGuard(t, `count == 3`, mem) {
		t.Fatal("expected numeric comparison to match")
	}
	if !evalGuard(t, `done == true`, mem) {
		t.Fatal("expected boolean comparison to match")
	}
}

func TestParseGuard_MalformedExpressionErrors(t *testing.T) {
	cases := []string{
		`status ==`,
		`status`,
		`(status == "a"`,
		`status in "a"`,
		`status in {"a"`,
		`status === "a"`,
		`status == "unterminated`,
	}
	for _, src := range cases {
		if _, err := parseGuard(src); err == nil {
			t.Errorf("parseGuard(%q): expected error, got nil", src)
		}
	}
}

func TestParseGuard_TrailingTokenErrors(t *testing.T) {
	if _, err := parseGuard(`status == "ok" status == "ok"`); err == nil {
		t.Fatal("expected error for trailing tokens after a complete expression")
	}
}
