package roomcode

import (
	"crypto/rand"
	"log"
	"math/big"
	"regexp"
	"strings"
)

// Generate creates a random, memorable room code.
// Format: word-word-word (e.g., "kitten-waffle-stardust").
// Picks three distinct word lists, then one word from each.
func Generate() string {
	allWords := [][]string{animals, dishes, names, randomWords, adjectives}

	selected := make([][]string, 3)
	used := make(map[int]bool)

	for i := 0; i < 3; i++ {
		var listIndex int
		for {
			listIndex = randomIndex(len(allWords))
			if !used[listIndex] {
				used[listIndex] = true
				break
			}
		}
		selected[i] = allWords[listIndex]
	}

	parts := make([]string, 3)
	for i, list := range selected {
		parts[i] = list[randomIndex(len(list))]
	}

	return strings.Join(parts, "-")
}

var codePattern = regexp.MustCompile(`^[a-z]+(-[a-z]+)*$`)

// IsWellFormed reports whether s looks like a generated room code. Rooms
// accept any non-empty identifier; this is only a hint for display.
func IsWellFormed(s string) bool {
	return codePattern.MatchString(s)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
