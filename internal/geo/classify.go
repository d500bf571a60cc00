package geo

// District relationship classes.
const (
	ClassInside  = "inside"
	ClassBorder  = "border"
	ClassOutside = "outside"
)

// borderThresholdKM is the vertex distance under which an outside point is
// still considered on the district border.
const borderThresholdKM = 5.0

// Classify returns the relationship class of a point to a district.
// Rules:
//   - inside: point within the district polygon
//   - border: outside AND nearest boundary vertex <= 5km
//   - outside: outside AND nearest boundary vertex > 5km
func Classify(isWithin bool, edgeKM float64) string {
	if isWithin {
		return ClassInside
	}
	if edgeKM <= borderThresholdKM {
		return ClassBorder
	}
	return ClassOutside
}
