package domain

import "github.com/google/uuid"

// MatchThreshold is the distance, in image pixels, below which a return
// damage is considered the same damage as a pickup one. Both photos are
// assumed to share a resolution.
const MatchThreshold = 50.0

// AngleMatch is the comparison result for one angle.
type AngleMatch struct {
	Angle        Angle       `json:"angle"`
	NewDamageIDs []uuid.UUID `json:"newDamageIds"`
	Matched      int         `json:"matched"`
	Malformed    int         `json:"malformed"`
}

// MatchPhaseDamages classifies the return damages of one angle. A return
// damage is pre-existing iff some pickup damage lies strictly closer than
// MatchThreshold. Many return damages may match the same pickup damage.
// Records with malformed locations never match and are counted, on both sides.
func MatchPhaseDamages(angle Angle, pickup, ret []Damage) AngleMatch {
	out := AngleMatch{Angle: angle, NewDamageIDs: []uuid.UUID{}}

	candidates := make([]Location, 0, len(pickup))
	for _, d := range pickup {
		loc, err := ParseLocation(d.Location)
		if err != nil {
			out.Malformed++
			continue
		}
		candidates = append(candidates, loc)
	}

	for _, d := range ret {
		loc, err := ParseLocation(d.Location)
		if err != nil {
			out.Malformed++
			out.NewDamageIDs = append(out.NewDamageIDs, d.ID)
			continue
		}
		if hasCandidateWithin(loc, candidates) {
			out.Matched++
			continue
		}
		out.NewDamageIDs = append(out.NewDamageIDs, d.ID)
	}
	return out
}

func hasCandidateWithin(loc Location, candidates []Location) bool {
	for _, c := range candidates {
		if Distance(loc, c) < MatchThreshold {
			return true
		}
	}
	return false
}

// Comparison is the outcome of comparing both phases over all five angles.
type Comparison struct {
	Angles       []AngleMatch `json:"angles"`
	NewDamageIDs []uuid.UUID  `json:"newDamageIds"`
	Matched      int          `json:"matched"`
	Malformed    int          `json:"malformed"`
}

// CompareAngles runs MatchPhaseDamages on each of the five angles
// independently and combines the results. Damages are never matched
// across angles.
func CompareAngles(damages []Damage) Comparison {
	grouped := make(map[Angle]map[Phase][]Damage, 5)
	for _, d := range damages {
		if grouped[d.Angle] == nil {
			grouped[d.Angle] = make(map[Phase][]Damage, 2)
		}
		grouped[d.Angle][d.Phase] = append(grouped[d.Angle][d.Phase], d)
	}

	out := Comparison{
		Angles:       make([]AngleMatch, 0, 5),
		NewDamageIDs: []uuid.UUID{},
	}
	for _, a := range AllAngles() {
		m := MatchPhaseDamages(a, grouped[a][PhasePickup], grouped[a][PhaseReturn])
		out.Angles = append(out.Angles, m)
		out.NewDamageIDs = append(out.NewDamageIDs, m.NewDamageIDs...)
		out.Matched += m.Matched
		out.Malformed += m.Malformed
	}
	return out
}

// ApplyComparison returns a copy of damages with isNew reset on every
// damage and then set on the ids in newIDs. Applying the same comparison
// twice gives the same result.
func ApplyComparison(damages []Damage, newIDs []uuid.UUID) []Damage {
	flagged := make(map[uuid.UUID]bool, len(newIDs))
	for _, id := range newIDs {
		flagged[id] = true
	}
	out := make([]Damage, len(damages))
	for i, d := range damages {
		d.IsNew = d.Phase == PhaseReturn && flagged[d.ID]
		out[i] = d
	}
	return out
}
