package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdAt(t *testing.T) {
	s := DefaultStrictness()

	t.Run("first iteration starts at initial", func(t *testing.T) {
		assert.InDelta(t, s.Initial, ThresholdAt(s, 1), 0.001)
	})

	t.Run("iterations below one clamp to the first", func(t *testing.T) {
		assert.Equal(t, ThresholdAt(s, 1), ThresholdAt(s, 0))
		assert.Equal(t, ThresholdAt(s, 1), ThresholdAt(s, -3))
	})

	t.Run("monotonically non-increasing, never below floor", func(t *testing.T) {
		prev := ThresholdAt(s, 1)
		for iter := 2; iter <= 100; iter++ {
			cur := ThresholdAt(s, iter)
			assert.LessOrEqual(t, cur, prev, "iteration %d rose above iteration %d", iter, iter-1)
			assert.GreaterOrEqual(t, cur, s.Floor, "iteration %d fell below the floor", iter)
			prev = cur
		}
	})

	t.Run("decays one tau worth per tau iterations", func(t *testing.T) {
		// After tau iterations the gap to the floor shrinks by a factor of e.
		gapStart := ThresholdAt(s, 1) - s.Floor
		gapLater := ThresholdAt(s, 1+int(s.Tau)) - s.Floor
		assert.InDelta(t, gapStart/2.718281828, gapLater, 0.01)
	})
}

func TestAtFloor(t *testing.T) {
	s := DefaultStrictness()

	assert.False(t, AtFloor(s, 1))
	assert.False(t, AtFloor(s, 10))
	assert.True(t, AtFloor(s, 40))
	assert.True(t, AtFloor(s, 1000))
}

func TestSizeMatchRequired(t *testing.T) {
	s := DefaultStrictness()

	tests := []struct {
		name      string
		iteration int
		expected  bool
	}{
		{name: "strict opening iteration", iteration: 1, expected: true},
		{name: "still above the cutoff", iteration: 5, expected: true},
		{name: "just below the cutoff", iteration: 6, expected: false},
		{name: "deep into relaxation", iteration: 20, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SizeMatchRequired(s, tt.iteration))
		})
	}
}
