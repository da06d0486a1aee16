package domain

// AngleRecord is the photo and damages captured for one angle of one phase.
type AngleRecord struct {
	Photo   *Photo   `json:"photo"`
	Damages []Damage `json:"damages"`
}

// PhaseRecords maps every angle to its record.
type PhaseRecords map[Angle]AngleRecord

// GroupByPhaseAngle reshapes flat photo and damage lists into one
// fixed five-angle map per phase. Absent photos are nil and absent damage
// lists are empty, never missing keys.
func GroupByPhaseAngle(photos []Photo, damages []Damage) map[Phase]PhaseRecords {
	out := make(map[Phase]PhaseRecords, 2)
	for _, phase := range AllPhases() {
		records := make(PhaseRecords, 5)
		for _, angle := range AllAngles() {
			records[angle] = AngleRecord{Damages: []Damage{}}
		}
		out[phase] = records
	}

	for i := range photos {
		p := photos[i]
		records, ok := out[p.Phase]
		if !ok || !p.Angle.Valid() {
			continue
		}
		rec := records[p.Angle]
		rec.Photo = &p
		records[p.Angle] = rec
	}

	for _, d := range damages {
		records, ok := out[d.Phase]
		if !ok || !d.Angle.Valid() {
			continue
		}
		rec := records[d.Angle]
		rec.Damages = append(rec.Damages, d)
		records[d.Angle] = rec
	}
	return out
}
