package rules

// SnapToEnabled returns the option index a slider lands on when the user drags
// to requested. A disabled target snaps to the nearest enabled option, searching
// first in the direction of travel from last, then the opposite direction.
// With every option disabled the clamped request is returned unchanged.
func SnapToEnabled(options []string, state FieldState, requested, last int) int {
	if len(options) == 0 {
		return 0
	}
	enabled := func(i int) bool { return state.Enabled(options[i]) }

	index := min(max(requested, 0), len(options)-1)
	if enabled(index) {
		return index
	}

	dirs := []int{1, -1}
	if index < last {
		dirs = []int{-1, 1}
	}

	for _, d := range dirs {
		for i := index + d; i >= 0 && i < len(options); i += d {
			if enabled(i) {
				return i
			}
		}
	}

	return index
}
