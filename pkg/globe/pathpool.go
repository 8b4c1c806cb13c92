package globe

import (
	"fmt"
	"math/rand"

	"github.com/sudorandom/globe-paths/pkg/geo"
)

// PathSpec is a candidate path between two locations.
type PathSpec struct {
	ID         string
	Start, End geo.GeoLocation
}

// PathID names a path after its end points.
func PathID(start, end geo.GeoLocation) string {
	return fmt.Sprintf("%s, %s To %s, %s", start.City, start.Country, end.City, end.Country)
}

// BuildPathPool pairs size random distinct locations into candidate paths. The same
// source and locations always give the same pool.
func BuildPathPool(locations []geo.GeoLocation, size int, rng *rand.Rand) ([]PathSpec, error) {
	if len(locations) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrNotEnoughLocations, len(locations))
	}
	pool := make([]PathSpec, 0, size)
	for len(pool) < size {
		i := rng.Intn(len(locations))
		j := rng.Intn(len(locations) - 1)
		if j >= i {
			j++
		}
		start, end := locations[i], locations[j]
		pool = append(pool, PathSpec{ID: PathID(start, end), Start: start, End: end})
	}
	return pool, nil
}
