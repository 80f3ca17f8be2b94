package rules

import (
	"fmt"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
)

// Reference thresholds
const (
	TemperatureHigh    = 35.0
	TemperatureMidHigh = 30.0

	HumidityLow         = 20.0
	HumidityOptimalHigh = 70.0

	SoilMoistureLow          = 10.0
	SoilMoistureOptimalLow   = 30.0
	SoilMoistureOptimalHigh  = 60.0
	SoilMoistureCriticalHigh = 90.0

	RainfallLow  = 10.0
	RainfallMid  = 30.0
	RainfallHigh = 100.0

	ETHigh = 50.0

	ECHigh = 4.0

	ESPMid  = 6.0
	ESPHigh = 15.0

	BulkDensityMid  = 1.4
	BulkDensityHigh = 1.6

	// warningRatio scales an alarm threshold down to its warning band
	warningRatio = 0.9

	// minWarningFactors is how many contributing factors raise a composite warning
	minWarningFactors = 2
)

// AlertFinding is a risk the evaluator found active for a reading
type AlertFinding struct {
	Type     RiskType `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RecommendationFinding is a recommendation the evaluator generated for a reading
type RecommendationFinding struct {
	Title    RecommendationTitle `json:"title"`
	Body     string              `json:"body"`
	Priority Priority            `json:"priority"`
}

// Evaluation is the outcome of one rules pass, in check order
type Evaluation struct {
	Alerts          []AlertFinding          `json:"alerts"`
	Recommendations []RecommendationFinding `json:"recommendations"`
}

// TriggeredRisks returns the set of risk types raised by this pass.
func (e Evaluation) TriggeredRisks() mapset.Set[RiskType] {
	s := mapset.NewThreadUnsafeSet[RiskType]()
	for _, a := range e.Alerts {
		s.Add(a.Type)
	}
	return s
}

// TriggeredTitles returns the set of recommendation titles generated by this pass.
func (e Evaluation) TriggeredTitles() mapset.Set[RecommendationTitle] {
	s := mapset.NewThreadUnsafeSet[RecommendationTitle]()
	for _, r := range e.Recommendations {
		s.Add(r.Title)
	}
	return s
}

// inputs is a reading coerced once to the values the checks compare against
type inputs struct {
	temp         float64
	humidity     float64
	soilMoisture float64
	ec           float64
	rainfall     float64
	et           float64
	esp          float64
	bulkDensity  float64
	slope        string
	visiblePests bool
	fireFlag     bool
}

func coerce(r Reading) inputs {
	return inputs{
		temp:         r.Number(FieldTemperature),
		humidity:     r.Number(FieldMoisture),
		soilMoisture: r.Number(FieldSoilMoisture),
		ec:           r.Number(FieldElectricalConductivity),
		rainfall:     r.Number(FieldRainfall),
		et:           r.Number(FieldET),
		esp:          r.Number(FieldESP),
		bulkDensity:  r.Number(FieldBulkDensity),
		slope:        r.Text(FieldSlope, SlopeFlat),
		visiblePests: r.Bool(FieldVisiblePests),
		fireFlag:     r.Bool(FieldFireFlag),
	}
}

// A zero humidity or soil moisture reading is treated as "not measured", so the
// low-side checks require a positive value.
func (in inputs) lowHumidity() bool { return in.humidity > 0 && in.humidity < HumidityLow }
func (in inputs) lowSoil() bool     { return in.soilMoisture > 0 && in.soilMoisture < SoilMoistureLow }
func (in inputs) lowRainfall() bool { return in.rainfall < RainfallLow }
func (in inputs) highET() bool      { return in.et > ETHigh }
func (in inputs) hot() bool         { return in.temp > TemperatureHigh }

// Evaluate runs every rule against r. It never fails: malformed values have already
// been coerced to 0, false or "Flat".
func Evaluate(r Reading) Evaluation {
	in := coerce(r)
	var out Evaluation

	for _, check := range riskChecks {
		if a, ok := check(in); ok {
			out.Alerts = append(out.Alerts, a)
		}
	}
	for _, check := range recommendationChecks {
		if rec, ok := check(in); ok {
			out.Recommendations = append(out.Recommendations, rec)
		}
	}
	return out
}

type riskCheck func(inputs) (AlertFinding, bool)

type recommendationCheck func(inputs) (RecommendationFinding, bool)

// Order matters: findings are emitted in this order.
var riskChecks = []riskCheck{
	checkFire,
	checkDrought,
	checkFlood,
	checkErosion,
	checkSalinity,
	checkSodicity,
	checkPest,
}

var recommendationChecks = []recommendationCheck{
	checkWaterUseEfficiency,
	checkReduceIrrigation,
	checkManageSalinity,
}

func alarm(t RiskType, msg string) (AlertFinding, bool) {
	return AlertFinding{Type: t, Severity: SeverityHigh, Message: msg}, true
}

func warning(t RiskType, msg string) (AlertFinding, bool) {
	return AlertFinding{Type: t, Severity: SeverityMedium, Message: msg}, true
}

func countTrue(conds ...bool) int {
	n := 0
	for _, c := range conds {
		if c {
			n++
		}
	}
	return n
}

func checkFire(in inputs) (AlertFinding, bool) {
	if in.fireFlag || (in.hot() && in.lowHumidity()) {
		return alarm(RiskFire, fmt.Sprintf(
			"CRITICAL FIRE RISK! Extremely high temperature (%s°C) and low humidity (%s%%).",
			num(in.temp), num(in.humidity)))
	}
	factors := countTrue(in.hot(), in.lowHumidity(), in.lowRainfall(), in.highET(), in.lowSoil())
	if factors >= minWarningFactors {
		return warning(RiskFire, fmt.Sprintf(
			"Elevated Fire Risk. %d risk factors detected (High Temp, Low Moisture, etc).", factors))
	}
	return AlertFinding{}, false
}

func checkDrought(in inputs) (AlertFinding, bool) {
	if in.lowSoil() || (in.lowRainfall() && in.highET() && in.et > 0) {
		return alarm(RiskDrought, fmt.Sprintf(
			"CRITICAL DROUGHT! Soil moisture is critically low (%s%%) or water deficit is high.",
			num(in.soilMoisture)))
	}
	if countTrue(in.lowRainfall(), in.lowSoil(), in.highET()) >= minWarningFactors {
		return warning(RiskDrought, "Drought Warning. Multiple water deficit indicators detected.")
	}
	return AlertFinding{}, false
}

// Flood has no separate warning tier: any warning condition already satisfies the alarm.
func checkFlood(in inputs) (AlertFinding, bool) {
	if in.rainfall > RainfallHigh || in.soilMoisture > SoilMoistureCriticalHigh {
		return alarm(RiskFlood, fmt.Sprintf(
			"FLOOD ALERT! Soil is saturated (%s%%) or heavy rainfall detected.", num(in.soilMoisture)))
	}
	return AlertFinding{}, false
}

func checkErosion(in inputs) (AlertFinding, bool) {
	if in.rainfall > RainfallHigh && in.slope == SlopeSteep &&
		(in.bulkDensity > BulkDensityHigh || in.esp > ESPHigh) {
		return alarm(RiskErosion, "SEVERE EROSION RISK! Heavy rain on steep slope with poor soil structure.")
	}
	if in.rainfall > RainfallMid && in.slope == SlopeModerate &&
		(in.bulkDensity > BulkDensityMid || in.esp > ESPMid) {
		return warning(RiskErosion, "Erosion Warning. Moderate slope and rainfall pose risk to soil stability.")
	}
	return AlertFinding{}, false
}

func checkSalinity(in inputs) (AlertFinding, bool) {
	if in.ec > ECHigh {
		return alarm(RiskSalinity, fmt.Sprintf(
			"High Salinity! EC value (%s dS/m) exceeds critical threshold.", num(in.ec)))
	}
	if in.ec > ECHigh*warningRatio {
		return warning(RiskSalinity, fmt.Sprintf(
			"Salinity Warning. EC value (%s dS/m) is approaching critical levels.", num(in.ec)))
	}
	return AlertFinding{}, false
}

func checkSodicity(in inputs) (AlertFinding, bool) {
	if in.esp > ESPHigh {
		return alarm(RiskSodicity, fmt.Sprintf(
			"High Sodicity! ESP (%s%%) indicates potential soil structure breakdown.", num(in.esp)))
	}
	if in.esp > ESPHigh*warningRatio || (in.esp > ESPMid && in.bulkDensity > BulkDensityHigh) {
		return warning(RiskSodicity, "Sodicity Warning. Soil sodium levels are elevated.")
	}
	return AlertFinding{}, false
}

func checkPest(in inputs) (AlertFinding, bool) {
	if in.visiblePests {
		return alarm(RiskPest, "Active Pest Outbreak reported!")
	}
	if in.temp > TemperatureMidHigh && in.humidity > HumidityOptimalHigh {
		return warning(RiskPest, fmt.Sprintf(
			"Pest Warning. Warm and humid conditions (%s°C, %s%%) favor pest proliferation.",
			num(in.temp), num(in.humidity)))
	}
	return AlertFinding{}, false
}

func checkWaterUseEfficiency(in inputs) (RecommendationFinding, bool) {
	if in.temp >= TemperatureMidHigh &&
		in.soilMoisture >= SoilMoistureOptimalLow && in.soilMoisture <= SoilMoistureOptimalHigh {
		return RecommendationFinding{
			Title: TitleWaterUseEfficiency,
			Body: fmt.Sprintf("Conditions are warm (%s°C) with moderate soil moisture. "+
				"Consider mulching or shading to reduce evaporation and improve yield.", num(in.temp)),
			Priority: PriorityMedium,
		}, true
	}
	return RecommendationFinding{}, false
}

func checkReduceIrrigation(in inputs) (RecommendationFinding, bool) {
	if in.soilMoisture > SoilMoistureOptimalHigh && in.soilMoisture < SoilMoistureCriticalHigh {
		return RecommendationFinding{
			Title: TitleReduceIrrigation,
			Body: fmt.Sprintf("Soil moisture is high (%s%%). "+
				"Reducing irrigation will cut water costs without impacting yield.", num(in.soilMoisture)),
			Priority: PriorityHigh,
		}, true
	}
	return RecommendationFinding{}, false
}

func checkManageSalinity(in inputs) (RecommendationFinding, bool) {
	if in.ec > ECHigh {
		return RecommendationFinding{
			Title:    TitleManageSalinity,
			Body:     "EC is high. Ensure proper drainage and consider leaching salts with fresh water if available.",
			Priority: PriorityHigh,
		}, true
	}
	return RecommendationFinding{}, false
}

// num renders a measurement in its shortest form (36, 4.5)
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
