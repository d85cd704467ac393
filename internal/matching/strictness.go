package matching

import (
	"math"

	"github.com/casematch/casematch/internal/types"
)

// thresholdEpsilon is the margin within which the threshold is considered to
// have reached its floor: no meaningful relaxation remains past it.
const thresholdEpsilon = 0.5

// ThresholdAt computes the admission threshold for a 1-based iteration:
// exponential decay from Initial toward Floor, monotonically non-increasing,
// never below Floor.
func ThresholdAt(s types.StrictnessSchedule, iteration int) float64 {
	if iteration < 1 {
		iteration = 1
	}
	decay := math.Exp(-float64(iteration-1) / s.Tau)
	return s.Floor + (s.Initial-s.Floor)*decay
}

// AtFloor reports whether the threshold for the iteration is effectively at
// the schedule's floor.
func AtFloor(s types.StrictnessSchedule, iteration int) bool {
	return ThresholdAt(s, iteration)-s.Floor < thresholdEpsilon
}

// SizeMatchRequired reports whether this iteration still demands an exact
// team-size preference match for admission. The requirement relaxes together
// with the threshold.
func SizeMatchRequired(s types.StrictnessSchedule, iteration int) bool {
	return ThresholdAt(s, iteration) >= s.SizeMatchCutoff
}
