package game

import (
	"sort"
	"strings"
)

// letterPool holds the sequences a word has to contain. Common bigrams and
// trigrams keep every prompt answerable.
var letterPool = []string{
	"ab", "ac", "ad", "ag", "al", "am", "an", "ar", "as", "at",
	"be", "ca", "ce", "ch", "co", "de", "di", "ea", "ed", "el",
	"en", "er", "es", "et", "ge", "ic", "il", "in", "is", "it",
	"la", "le", "li", "lo", "ma", "me", "ne", "no", "ol", "om",
	"on", "or", "ou", "pa", "pe", "ra", "re", "ri", "ro", "se",
	"st", "ta", "te", "th", "ti", "to", "tr", "un", "ur", "us",
	"ate", "ati", "con", "ent", "ere", "est", "her", "ing", "ion",
	"ter", "the", "tio", "ver", "all", "and", "ous", "pro", "res",
}

// drawLetters picks a sequence from the pool that differs from current.
func drawLetters(r Rand, current string) string {
	for i := 0; i < 4; i++ {
		l := letterPool[r.Intn(len(letterPool))]
		if l != current {
			return l
		}
	}
	return letterPool[(indexOf(current)+1)%len(letterPool)]
}

func indexOf(letters string) int {
	for i, l := range letterPool {
		if l == letters {
			return i
		}
	}
	return -1
}

// seedLettersUsed is the tracking set a player starts with and returns to
// after a bonus heart. X and Z are rare enough to count as used.
const seedLettersUsed = "XZ"

// addLettersUsed merges the letters of word into used and reports whether the
// result covers the whole alphabet.
func addLettersUsed(used, word string) (string, bool) {
	set := make(map[rune]struct{}, 26)
	for _, c := range used {
		set[c] = struct{}{}
	}
	for _, c := range strings.ToUpper(word) {
		if c >= 'A' && c <= 'Z' {
			set[c] = struct{}{}
		}
	}
	letters := make([]rune, 0, len(set))
	for c := range set {
		letters = append(letters, c)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters), len(letters) == 26
}
