package seeding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBracketSize(t *testing.T) {
	testCases := []struct {
		n        int
		expected int
	}{
		{n: -1, expected: 2},
		{n: 0, expected: 2},
		{n: 1, expected: 2},
		{n: 2, expected: 2},
		{n: 3, expected: 4},
		{n: 5, expected: 8},
		{n: 8, expected: 8},
		{n: 9, expected: 16},
		{n: 33, expected: 64},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, BracketSize(tc.n), "n=%d", tc.n)
	}
}

func TestRoundOnePairs(t *testing.T) {
	testCases := []struct {
		name        string
		bracketSize int
		expected    [][2]int
	}{
		{
			name:        "2 slots",
			bracketSize: 2,
			expected:    [][2]int{{1, 2}},
		},
		{
			name:        "4 slots",
			bracketSize: 4,
			expected:    [][2]int{{1, 4}, {2, 3}},
		},
		{
			name:        "8 slots",
			bracketSize: 8,
			expected:    [][2]int{{1, 8}, {4, 5}, {2, 7}, {3, 6}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RoundOnePairs(tc.bracketSize))
		})
	}
}

func TestSeedPositionsInvariants(t *testing.T) {
	for _, size := range []int{2, 4, 8, 16, 32, 64} {
		positions := SeedPositions(size)
		assert.Len(t, positions, size)

		half := size / 2
		assert.NotEqual(t, positions[0] < half, positions[1] < half, "seeds 1 and 2 must be in opposite halves (size %d)", size)

		for k := 1; k <= size; k++ {
			mirror := size + 1 - k
			a, b := positions[k-1], positions[mirror-1]
			assert.Equal(t, a/2, b/2, "seed %d must meet seed %d in round 1 (size %d)", k, mirror, size)
		}

		seen := make(map[int]bool)
		for _, slot := range positions {
			assert.False(t, seen[slot], "slot %d used twice", slot)
			seen[slot] = true
		}
	}
}

func TestRoundName(t *testing.T) {
	assert.Equal(t, "Finals", RoundName(4, 4))
	assert.Equal(t, "Semi-Finals", RoundName(3, 4))
	assert.Equal(t, "Quarter-Finals", RoundName(2, 4))
	assert.Equal(t, "Round 1", RoundName(1, 4))
	assert.Equal(t, "Finals", RoundName(1, 1))
}
