package phone

import "testing"

func TestNormalizeE164FormatsBrazilianNumber(t *testing.T) {
	got := NormalizeE164("(11) 99999-8888")
	if got != "+5511999998888" {
		t.Fatalf("expected +5511999998888, got %q", got)
	}
}

func TestNormalizeE164KeepsAlreadyNormalizedNumber(t *testing.T) {
	got := NormalizeE164("+5511999998888")
	if got != "+5511999998888" {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}

func TestNormalizeE164ReturnsTrimmedInputOnParseFailure(t *testing.T) {
	got := NormalizeE164("  not-a-phone  ")
	if got != "not-a-phone" {
		t.Fatalf("expected trimmed input back, got %q", got)
	}
}

func TestDigitsStripsEverythingExceptDigits(t *testing.T) {
	got := Digits("+55 (11) 99999-8888")
	if got != "5511999998888" {
		t.Fatalf("expected 5511999998888, got %q", got)
	}
}

func TestDigitsEmptyInput(t *testing.T) {
	if got := Digits(""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestIsDigitsOnly(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"11999998888", true},
		{"+55 11 99999-8888", true},
		{"(11) 99999 8888", true},
		{"maria", false},
		{"11 santos", false},
		{"", false},
		{"   ", false},
		{"+", false},
	}

	for _, tc := range cases {
		if got := IsDigitsOnly(tc.input); got != tc.want {
			t.Fatalf("IsDigitsOnly(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
