package validate

import (
	"fmt"
	"math"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// duplicateStopMeters is the distance below which two stops are
// considered likely duplicates rather than merely nearby (e.g.
// opposite platforms of the same station).
const duplicateStopMeters = 5.0

// metersPerDegree approximates the flattening-corrected conversion
// used to avoid a full haversine call for every stop pair: degrees of
// longitude shrink by cos(lat), so scaling by it gives a fast,
// locally-accurate planar distance for the tight duplicate-detection
// radius used here.
const metersPerDegree = 111111.0

type stopPos struct {
	id       string
	name     string
	lat, lon float64
}

// checkDuplicateStops flags stop pairs that sit within a few meters
// of each other and share a name, which usually indicates the same
// physical stop was loaded twice under different IDs.
func checkDuplicateStops(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf("SELECT stop_id, stop_name, stop_lat, stop_lon FROM %s", storage.TableName(namespace, "stops")))
	if err != nil {
		return err
	}
	defer rows.Close()

	var stops []stopPos
	for rows.Next() {
		var s stopPos
		if err := rows.Scan(&s.id, &s.name, &s.lat, &s.lon); err != nil {
			return err
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := 0; i < len(stops); i++ {
		for j := i + 1; j < len(stops); j++ {
			a, b := stops[i], stops[j]
			if a.name == "" || a.name != b.name {
				continue
			}
			dx := (a.lon - b.lon) * metersPerDegree * math.Cos(a.lat*math.Pi/180)
			dy := (a.lat - b.lat) * metersPerDegree
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist <= duplicateStopMeters {
				store.Add(errs.KindDuplicateStop, "stop", a.id, 0,
					"stop %s is within %.1fm of stop %s and shares its name %q", a.id, dist, b.id, a.name)
			}
		}
	}
	return nil
}
