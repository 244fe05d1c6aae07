package ingestion

// GeometryKey identifies a canonical point. Negative zero is folded into
// zero so that -0.0 and 0.0 collide, matching PostGIS equality.
type GeometryKey struct {
	Lon float64
	Lat float64
}

func NewGeometryKey(lon, lat float64) GeometryKey {
	return GeometryKey{Lon: lon + 0, Lat: lat + 0}
}

type profileKey struct {
	sourceID int64
	geom     GeometryKey
}

// Deduplicate keeps the first item for each key in input order and returns
// the number of items dropped.
func Deduplicate[T any, K comparable](items []T, key func(T) K) ([]T, int) {
	seen := make(map[K]struct{}, len(items))
	kept := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, it)
	}
	return kept, len(items) - len(kept)
}

// DeduplicateProfiles collapses records sharing a (location, source) key.
// Records must already be normalized.
func DeduplicateProfiles(sourceID int64, records []ProfileRecord) ([]ProfileRecord, int) {
	return Deduplicate(records, func(r ProfileRecord) profileKey {
		return profileKey{sourceID: sourceID, geom: NewGeometryKey(r.Location.Lon, r.Location.Lat)}
	})
}

type layerKey struct {
	profile string
	name    string
}

// DeduplicateLayers collapses layers sharing a (profile, name) key.
func DeduplicateLayers(records []LayerRecord) ([]LayerRecord, int) {
	return Deduplicate(records, func(r LayerRecord) layerKey {
		return layerKey{profile: r.ProfileNativeID, name: r.Name}
	})
}

// Chunk splits items into consecutive slices of at most size elements.
// The chunks share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
