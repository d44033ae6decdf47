package domain

import "testing"

func TestShortTraceID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0199a7b2-4c1d-4f2e-9c3a-000000000000", "0199a7b2"},
		{"abcdefgh", "abcdefgh"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortTraceID(tt.in); got != tt.want {
			t.Errorf("ShortTraceID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExecutionResultErrorText(t *testing.T) {
	ok := ExecutionResult{Success: true}
	if ok.ErrorText() != "" {
		t.Errorf("ErrorText on success = %q, want empty", ok.ErrorText())
	}
}
