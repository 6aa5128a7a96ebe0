package permit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// AvgUnitSF is the assumed gross area per multifamily unit.
	AvgUnitSF = 900
	// MinUnits is the smallest building that counts as multifamily.
	MinUnits = 5
	// MaxEstimatedUnits caps area-based estimates.
	MaxEstimatedUnits = 2000
)

// EstimateUnits derives a unit count from gross building area as
// ceil(area/AvgUnitSF), capped at MaxEstimatedUnits. ok is false when the
// estimate is below MinUnits; such buildings are not multifamily.
func EstimateUnits(areaSF int) (units int, ok bool) {
	if areaSF <= 0 {
		return 0, false
	}
	units = int(math.Ceil(float64(areaSF) / AvgUnitSF))
	if units < MinUnits {
		return units, false
	}
	if units > MaxEstimatedUnits {
		units = MaxEstimatedUnits
	}
	return units, true
}

// SafeInt coerces a loosely typed JSON value to an int, truncating decimals.
// Missing or unparseable values yield 0.
func SafeInt(v any) int {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// SafeFloat coerces a loosely typed JSON value to a float. Zero counts as
// absent because the sources use 0 for "no coordinate".
func SafeFloat(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" || strings.EqualFold(s, "none") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(x), 64)
		return f, err == nil
	}
}
