package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantLength int
	}{
		{name: "outbox ID format", prefix: "ob_", hexLength: 24, wantLength: 27},
		{name: "custom prefix", prefix: "test_", hexLength: 16, wantLength: 21},
		{name: "empty hex", prefix: "x", hexLength: 0, wantLength: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.prefix)
			}
			if len(got) != tt.wantLength {
				t.Errorf("GenerateRandomID() length = %v, want %v", len(got), tt.wantLength)
			}
			for _, c := range got[len(tt.prefix):] {
				if !strings.ContainsRune("0123456789abcdef", c) {
					t.Errorf("GenerateRandomID() hex part %q contains %q", got, c)
				}
			}
		})
	}
}

func TestGenerateBookingCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateBookingCode()
		if len(code) != BookingCodeLength {
			t.Fatalf("GenerateBookingCode() length = %d, want %d", len(code), BookingCodeLength)
		}
		if strings.ToUpper(code) != code {
			t.Errorf("GenerateBookingCode() = %q, want uppercase", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(bookingCodeChars, c) {
				t.Errorf("GenerateBookingCode() = %q contains invalid char %q", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Errorf("GenerateBookingCode() produced only %d unique codes out of 200", len(seen))
	}
}

func TestGenerateOutboxID(t *testing.T) {
	id := GenerateOutboxID()
	if !strings.HasPrefix(id, "ob_") || len(id) != 27 {
		t.Errorf("GenerateOutboxID() = %q, want ob_ prefix and length 27", id)
	}
}
