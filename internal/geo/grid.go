package geo

import "github.com/gansidui/geohash"

// GeohashPrecision is the cell size used to enrich spatial query
// results: 8 characters is roughly a 38m x 19m cell.
const GeohashPrecision = 8

// Geohash returns the grid index cell for a coordinate.
func Geohash(lat, lon float64) string {
	hash, _ := geohash.Encode(lat, lon, GeohashPrecision)
	return hash
}
