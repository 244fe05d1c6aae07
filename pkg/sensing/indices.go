package sensing

// normalizedDifference is (a-b)/(a+b); ok is false when the sum is zero.
func normalizedDifference(a, b float64) (float64, bool) {
	sum := a + b
	if sum == 0 {
		return 0, false
	}
	return (a - b) / sum, true
}

// AddSpectralIndices adds NDVI from B8 and B4 and NDWI from B3 and B8 when
// the bands are present. values is modified in place.
func AddSpectralIndices(values map[string]float64) {
	b3, hasB3 := values["B3"]
	b4, hasB4 := values["B4"]
	b8, hasB8 := values["B8"]

	if hasB8 && hasB4 {
		if v, ok := normalizedDifference(b8, b4); ok {
			values["NDVI"] = v
		}
	}
	if hasB3 && hasB8 {
		if v, ok := normalizedDifference(b3, b8); ok {
			values["NDWI"] = v
		}
	}
}
