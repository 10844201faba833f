package validate

import (
	"fmt"
	"sort"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

type tripSpan struct {
	tripID    string
	serviceID string
	start     int
	end       int
}

// checkOverlappingTrips flags trips sharing a block_id and service_id
// whose stop_time spans overlap, since a single vehicle (the purpose
// of block_id) cannot run two overlapping trips at once.
func checkOverlappingTrips(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf(`
SELECT t.block_id, t.trip_id, t.service_id, MIN(st.arrival_time), MAX(st.departure_time)
FROM %s t JOIN %s st ON t.trip_id = st.trip_id
WHERE t.block_id != ''
GROUP BY t.block_id, t.trip_id, t.service_id`,
		storage.TableName(namespace, "trips"), storage.TableName(namespace, "stop_times")))
	if err != nil {
		return err
	}
	defer rows.Close()

	byBlock := map[string][]tripSpan{}
	for rows.Next() {
		var blockID, tripID, serviceID, minArr, maxDep string
		if err := rows.Scan(&blockID, &tripID, &serviceID, &minArr, &maxDep); err != nil {
			return err
		}
		start, ok1 := hmsToSeconds(minArr)
		end, ok2 := hmsToSeconds(maxDep)
		if !ok1 || !ok2 {
			continue
		}
		byBlock[blockID] = append(byBlock[blockID], tripSpan{tripID, serviceID, start, end})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, spans := range byBlock {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			prev, cur := spans[i-1], spans[i]
			if prev.serviceID != cur.serviceID {
				continue
			}
			if cur.start < prev.end {
				store.Add(errs.KindOverlappingTripsInBlock, "trip", cur.tripID, 0,
					"trip %s overlaps trip %s within the same block and service", cur.tripID, prev.tripID)
			}
		}
	}
	return nil
}
