package domain

// PhaseCompleteness reports which angles of a phase have a photo.
// Captured and Missing are in canonical angle order and partition AllAngles.
type PhaseCompleteness struct {
	Phase    Phase   `json:"phase"`
	Captured []Angle `json:"captured"`
	Missing  []Angle `json:"missing"`
	Complete bool    `json:"complete"`
}

// Completeness computes the completeness of phase from a set of photos.
// Photos of the other phase are ignored.
func Completeness(photos []Photo, phase Phase) PhaseCompleteness {
	have := make(map[Angle]bool, len(photos))
	for _, p := range photos {
		if p.Phase == phase {
			have[p.Angle] = true
		}
	}

	out := PhaseCompleteness{
		Phase:    phase,
		Captured: make([]Angle, 0, 5),
		Missing:  make([]Angle, 0, 5),
	}
	for _, a := range AllAngles() {
		if have[a] {
			out.Captured = append(out.Captured, a)
		} else {
			out.Missing = append(out.Missing, a)
		}
	}
	out.Complete = len(out.Missing) == 0
	return out
}
