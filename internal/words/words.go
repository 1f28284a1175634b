// Package words builds the text players race on.
package words

import (
	"math/rand/v2"
	"strings"
)

// DefaultCount is the text length used when a caller has no better figure.
const DefaultCount = 40

var common = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "I",
	"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
	"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
	"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
	"people", "into", "year", "your", "good", "some", "could", "them", "see", "other",
	"than", "then", "now", "look", "only", "come", "its", "over", "think", "also",
	"back", "after", "use", "two", "how", "our", "work", "first", "well", "way",
	"even", "new", "want", "because", "any", "these", "give", "day", "most", "us",
}

// Generate returns n words drawn uniformly from the common word list, joined by
// single spaces. n <= 0 yields DefaultCount words.
func Generate(n int) string {
	return generate(rand.IntN, n)
}

// GenerateFrom is Generate with a caller-supplied source.
func GenerateFrom(r *rand.Rand, n int) string {
	return generate(r.IntN, n)
}

func generate(intn func(int) int, n int) string {
	if n <= 0 {
		n = DefaultCount
	}
	picked := make([]string, n)
	for i := range picked {
		picked[i] = common[intn(len(common))]
	}
	return strings.Join(picked, " ")
}

// CountFor returns the number of words to generate for a match. Word-count
// races get exactly that many words. Timed races get four words per second,
// never fewer than DefaultCount.
func CountFor(timed bool, setting int) int {
	if !timed {
		return setting
	}
	return max(DefaultCount, setting*4)
}
