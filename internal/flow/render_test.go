package flow

import (
	"sync"
	"testing"

	"github.com/aura-dev/aura/internal/models"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{50, "R$ 50,00"},
		{0, "R$ 0,00"},
		{9.9, "R$ 9,90"},
		{1234.5, "R$ 1.234,50"},
		{1000000, "R$ 1.000.000,00"},
	}
	for _, tt := range tests {
		if got := formatBRL(tt.in); got != tt.want {
			t.Errorf("formatBRL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate("2025-01-10"); got != "10/01/2025" {
		t.Errorf("formatDate = %q", got)
	}
	if got := formatDate("amanhã"); got != "amanhã" {
		t.Errorf("formatDate passthrough = %q", got)
	}
}

func TestRenderOptions(t *testing.T) {
	d := &models.OptionsData{Message: "Menu:", Options: []models.Option{{Text: "Vendas"}, {Text: "Suporte"}}}
	if got := renderOptions(d); got != "Menu:\n1. Vendas\n2. Suporte" {
		t.Errorf("renderOptions = %q", got)
	}
	if got := renderOptions(&models.OptionsData{}); got != defaultOptionsPrompt {
		t.Errorf("renderOptions without options = %q", got)
	}
	if got := renderOptionsError(d, true); got != invalidOptionPrefix+"\n\n1. Vendas\n2. Suporte" {
		t.Errorf("renderOptionsError = %q", got)
	}
}

func TestParseRating(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "5": 5, " 3\n": 3} {
		if got, ok := parseRating(in); !ok || got != want {
			t.Errorf("parseRating(%q) = %d, %v", in, got, ok)
		}
	}
	for _, in := range []string{"6", "-1", "05", "a", ""} {
		if _, ok := parseRating(in); ok {
			t.Errorf("parseRating(%q) accepted", in)
		}
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if k.size() != 0 {
		t.Errorf("size = %d, want 0", k.size())
	}
}
