// Package rules holds the block risk rule engine: readings, gap-filling and the
// threshold evaluator. Everything here is pure; storage and logging live elsewhere.
package rules

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Field names a value carried by a reading
type Field string

const (
	FieldTemperature            Field = "temperature"
	FieldMoisture               Field = "moisture" // air humidity
	FieldSoilMoisture           Field = "soilMoisture"
	FieldElectricalConductivity Field = "electricalConductivity"
	FieldPHValue                Field = "pHValue"
	FieldRainfall               Field = "rainfall"
	FieldET                     Field = "et" // evapotranspiration
	FieldSlope                  Field = "slope"
	FieldBulkDensity            Field = "bulkDensity"
	FieldESP                    Field = "esp" // exchangeable sodium percentage
	FieldVisiblePests           Field = "visiblePests"
	FieldFireFlag               Field = "fireFlag"
)

// Slope categories
const (
	SlopeFlat     = "Flat"
	SlopeModerate = "Moderate"
	SlopeSteep    = "Steep"
)

// Values maps fields to raw submitted values. A value may be nil, a string,
// any numeric kind, a bool, or a pointer to one of those.
type Values map[Field]any

// Reading is one observation's measurements scoped to a (site, block).
type Reading struct {
	SiteID      string
	BlockID     string
	SubmittedOn time.Time
	Values      Values
}

// NewReading builds a reading over a copy of values.
func NewReading(siteID, blockID string, submittedOn time.Time, values Values) Reading {
	return Reading{
		SiteID:      siteID,
		BlockID:     blockID,
		SubmittedOn: submittedOn,
		Values:      values.clone(),
	}
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Raw returns the value stored for f with pointers dereferenced. Nil pointers
// and missing fields both report nil.
func (r Reading) Raw(f Field) any {
	return deref(r.Values[f])
}

// IsBlank reports whether f is absent, nil, or a whitespace-only string.
func (r Reading) IsBlank(f Field) bool {
	switch v := r.Raw(f).(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// Number coerces f to a float64. Missing, non-numeric and NaN values become 0.
func (r Reading) Number(f Field) float64 {
	n, _ := r.Float(f)
	return n
}

// Float is Number that also reports whether f held a usable number.
func (r Reading) Float(f Field) (float64, bool) {
	var n float64
	switch v := r.Raw(f).(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// Bool coerces f to a flag. Only true, numeric 1 and "Yes" count as set.
func (r Reading) Bool(f Field) bool {
	switch v := r.Raw(f).(type) {
	case bool:
		return v
	case string:
		return v == "Yes"
	case nil:
		return false
	default:
		return r.Number(f) == 1
	}
}

// Text returns f as a string, or def when the field is blank or not a string.
func (r Reading) Text(f Field, def string) string {
	if s, ok := r.Raw(f).(string); ok && s != "" {
		return s
	}
	return def
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
