package validate

import (
	"database/sql"
	"fmt"
	"strconv"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// maxPlausibleKPH bounds the speed implied by consecutive stop_times,
// per route_type (GTFS' routes.txt enum), since a subway and a ferry
// have very different notions of "too fast". Route types with no
// entry here fall back to defaultMaxKPH. Exact bounds are
// implementation-tunable; these are round numbers, not measurements.
var maxPlausibleKPH = map[int]float64{
	0:  100.0, // Tram, Streetcar, Light rail
	1:  120.0, // Subway, Metro
	2:  200.0, // Rail
	3:  130.0, // Bus
	4:  90.0,  // Ferry
	5:  30.0,  // Cable tram
	6:  50.0,  // Aerial lift
	7:  50.0,  // Funicular
	11: 100.0, // Trolleybus
	12: 150.0, // Monorail
}

const defaultMaxKPH = 150.0

// minPlausibleKPH is the floor below which a non-trivial hop is
// flagged as implausibly slow rather than simply a long dwell. Short
// hops (below minFlaggableKM) are exempt: a demand-responsive
// pickup/drop-off pair 50m apart can legitimately take many minutes.
const minPlausibleKPH = 2.0
const minFlaggableKM = 0.1

func maxKPHForRouteType(routeType string) float64 {
	n, err := strconv.Atoi(routeType)
	if err != nil {
		return defaultMaxKPH
	}
	if kph, ok := maxPlausibleKPH[n]; ok {
		return kph
	}
	return defaultMaxKPH
}

type speedStopTime struct {
	tripID    string
	routeType string
	seq       int
	arrival   string
	departure string
	lat, lon  sql.NullFloat64
	line      int
}

// checkSpeeds flags consecutive stop pairs within a trip whose
// haversine distance and elapsed time imply an impossible speed,
// reusing storage.HaversineDistance exactly as the teacher's
// NearbyStops sorts by it (storage/sqlite.go). A pair where either
// endpoint is a GTFS-Flex halt with no fixed stop coordinates
// (location_group_id/location_id rather than stop_id) can't have a
// speed computed at all; those trips get a single
// TRIP_SPEED_NOT_VALIDATED notice instead of being silently skipped.
func checkSpeeds(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf(`
SELECT st.trip_id, r.route_type, st.stop_sequence, COALESCE(st.arrival_time, ''), COALESCE(st.departure_time, ''), s.stop_lat, s.stop_lon, st.line_number
FROM %s st
JOIN %s t ON st.trip_id = t.trip_id
JOIN %s r ON t.route_id = r.route_id
LEFT JOIN %s s ON st.stop_id = s.stop_id
ORDER BY st.trip_id, st.stop_sequence`,
		storage.TableName(namespace, "stop_times"),
		storage.TableName(namespace, "trips"),
		storage.TableName(namespace, "routes"),
		storage.TableName(namespace, "stops")))
	if err != nil {
		return err
	}
	defer rows.Close()

	byTrip := map[string][]speedStopTime{}
	var order []string
	for rows.Next() {
		var r speedStopTime
		if err := rows.Scan(&r.tripID, &r.routeType, &r.seq, &r.arrival, &r.departure, &r.lat, &r.lon, &r.line); err != nil {
			return err
		}
		if _, ok := byTrip[r.tripID]; !ok {
			order = append(order, r.tripID)
		}
		byTrip[r.tripID] = append(byTrip[r.tripID], r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tripID := range order {
		stops := byTrip[tripID]
		notValidated := false
		for i := 1; i < len(stops); i++ {
			prev, cur := stops[i-1], stops[i]
			if !prev.lat.Valid || !prev.lon.Valid || !cur.lat.Valid || !cur.lon.Valid {
				notValidated = true
				continue
			}
			elapsed := secondsBetween(prev.departure, cur.arrival)
			if elapsed <= 0 {
				continue
			}
			km := storage.HaversineDistance(prev.lat.Float64, prev.lon.Float64, cur.lat.Float64, cur.lon.Float64)
			kph := km / (float64(elapsed) / 3600.0)

			if kph > maxKPHForRouteType(cur.routeType) {
				// Reported against both endpoints of the offending
				// pair, since either stop_times row could be the one
				// an editor needs to fix.
				store.Add(errs.KindFastTravelBetweenStops, "trip", tripID, prev.line,
					"stop_sequence %d to %d implies %.0f km/h over %.2f km in %ds", prev.seq, cur.seq, kph, km, elapsed)
				store.Add(errs.KindFastTravelBetweenStops, "trip", tripID, cur.line,
					"stop_sequence %d to %d implies %.0f km/h over %.2f km in %ds", prev.seq, cur.seq, kph, km, elapsed)
				continue
			}
			if km >= minFlaggableKM && kph < minPlausibleKPH {
				store.Add(errs.KindSlowTravelBetweenStops, "trip", tripID, cur.line,
					"stop_sequence %d to %d implies %.1f km/h over %.2f km in %ds", prev.seq, cur.seq, kph, km, elapsed)
			}
		}
		if notValidated {
			store.Add(errs.KindTripSpeedNotValidated, "trip", tripID, 0,
				"trip %s has a GTFS-Flex halt with no fixed coordinates; travel speed between some stop pairs could not be validated", tripID)
		}
	}
	return nil
}

func secondsBetween(a, b string) int {
	as, aok := hmsToSeconds(a)
	bs, bok := hmsToSeconds(b)
	if !aok || !bok {
		return 0
	}
	return bs - as
}

// hmsToSeconds parses an HH:MM:SS time of day, tolerating hours past
// 24 (GTFS service running past midnight).
func hmsToSeconds(hms string) (int, bool) {
	if len(hms) < 7 {
		return 0, false
	}
	var h, m, s int
	if _, err := fmt.Sscanf(hms, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, false
	}
	return h*3600 + m*60 + s, true
}
