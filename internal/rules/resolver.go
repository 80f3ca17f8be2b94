package rules

// GapFillFields lists the fields a blank submission may inherit from the block's
// previous reading. Pest and fire flags are per-visit observations and never carry over.
var GapFillFields = []Field{
	FieldTemperature,
	FieldMoisture,
	FieldSoilMoisture,
	FieldElectricalConductivity,
	FieldPHValue,
	FieldRainfall,
	FieldET,
	FieldSlope,
	FieldBulkDensity,
	FieldESP,
}

// Resolve merges current with the most recent prior reading of the same block.
// A blank field in current takes previous's value when previous has one there.
// A nil previous leaves current unchanged.
func Resolve(current Reading, previous *Reading) Reading {
	merged, _ := ResolveWithReport(current, previous)
	return merged
}

// ResolveWithReport is Resolve that also returns the fields that were filled.
func ResolveWithReport(current Reading, previous *Reading) (Reading, []Field) {
	merged := NewReading(current.SiteID, current.BlockID, current.SubmittedOn, current.Values)
	if previous == nil {
		return merged, nil
	}

	var filled []Field
	for _, f := range GapFillFields {
		if !current.IsBlank(f) {
			continue
		}
		prev := previous.Raw(f)
		if prev == nil {
			continue
		}
		merged.Values[f] = prev
		filled = append(filled, f)
	}
	return merged, filled
}
