package core

import "testing"

func TestRedactSensitiveMap(t *testing.T) {
	input := map[string]any{
		"user_id":      "user_1",
		"token":        "tok-secret",
		"token_hint":   "tok-se***",
		"api_key":      "k",
		"X-Trello-Key": "not matched",
		"nested": map[string]any{
			"app_secret": "s",
			"board_id":   "b1",
		},
		"list": []any{map[string]any{"Authorization": "Bearer x"}},
	}

	out := RedactSensitiveMap(input)
	if out["user_id"] != "user_1" || out["token_hint"] != "tok-se***" {
		t.Fatalf("expected correlation fields to survive, got %#v", out)
	}
	if out["token"] != RedactedValue || out["api_key"] != RedactedValue {
		t.Fatalf("expected secrets to be redacted, got %#v", out)
	}
	nested := out["nested"].(map[string]any)
	if nested["app_secret"] != RedactedValue || nested["board_id"] != "b1" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	item := out["list"].([]any)[0].(map[string]any)
	if item["Authorization"] != RedactedValue {
		t.Fatalf("expected slice entries to be redacted, got %#v", item)
	}
	if input["token"] != "tok-secret" {
		t.Fatalf("expected input to stay untouched")
	}
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map for nil input, got %#v", got)
	}
}
