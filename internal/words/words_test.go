package words

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func TestGenerateCount(t *testing.T) {
	for _, n := range []int{1, 10, 25, 120} {
		got := strings.Fields(Generate(n))
		if len(got) != n {
			t.Errorf("Generate(%d) produced %d words", n, len(got))
		}
	}
	if got := len(strings.Fields(Generate(0))); got != DefaultCount {
		t.Errorf("Generate(0) produced %d words, want %d", got, DefaultCount)
	}
}

func TestGenerateUsesWordList(t *testing.T) {
	known := make(map[string]bool, len(common))
	for _, w := range common {
		known[w] = true
	}
	for _, w := range strings.Fields(Generate(200)) {
		if !known[w] {
			t.Fatalf("unexpected word %q", w)
		}
	}
}

func TestGenerateFromIsReproducible(t *testing.T) {
	a := GenerateFrom(rand.New(rand.NewPCG(7, 11)), 30)
	b := GenerateFrom(rand.New(rand.NewPCG(7, 11)), 30)
	if a != b {
		t.Errorf("same seed gave different texts:\n%s\n%s", a, b)
	}
}

func TestCountFor(t *testing.T) {
	tests := []struct {
		timed   bool
		setting int
		want    int
	}{
		{false, 10, 10},
		{false, 50, 50},
		{true, 5, 40},
		{true, 15, 60},
		{true, 60, 240},
	}
	for _, tt := range tests {
		if got := CountFor(tt.timed, tt.setting); got != tt.want {
			t.Errorf("CountFor(%v, %d) = %d, want %d", tt.timed, tt.setting, got, tt.want)
		}
	}
}
