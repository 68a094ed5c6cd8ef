package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("AURA_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("AURA_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("AURA_TEST_DURATION", "250ms")
	if got := ParseDurationEnv("AURA_TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("ParseDurationEnv = %v, want 250ms", got)
	}
	t.Setenv("AURA_TEST_DURATION", "-5s")
	if got := ParseDurationEnv("AURA_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("ParseDurationEnv negative = %v, want default", got)
	}
	t.Setenv("AURA_TEST_DURATION", "soon")
	if got := ParseDurationEnv("AURA_TEST_DURATION", 2*time.Second); got != 2*time.Second {
		t.Errorf("ParseDurationEnv invalid = %v, want default", got)
	}
}
