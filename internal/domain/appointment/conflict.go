package appointment

// Interval is a half-open [Start, End) slot within one day.
type Interval struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

// Valid reports a non-empty interval inside a single day.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.Start < iv.End && iv.End <= minutesPerDay
}

// Overlaps reports whether the two intervals share at least one instant.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && iv.End > o.Start
}

// HasConflict reports whether proposed overlaps any live appointment in
// sameDay. Callers pass appointments of one doctor on one date.
func HasConflict(sameDay []*Appointment, proposed Interval) bool {
	return FirstConflict(sameDay, proposed) != nil
}

// FirstConflict returns the earliest-listed live appointment overlapping proposed.
func FirstConflict(sameDay []*Appointment, proposed Interval) *Appointment {
	for _, a := range sameDay {
		if a.Status == StatusCancelled {
			continue
		}
		if a.Interval().Overlaps(proposed) {
			return a
		}
	}
	return nil
}
