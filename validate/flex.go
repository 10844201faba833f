package validate

import (
	"fmt"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// checkFlexConsistency validates GTFS-Flex specific rules: a
// continuous-pickup/drop-off booking window must have a booking rule
// it can be checked against, and a window's start must not be after
// its end.
func checkFlexConsistency(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf(`
SELECT trip_id, line_number, COALESCE(start_pickup_drop_off_window, ''), COALESCE(end_pickup_drop_off_window, ''),
       COALESCE(pickup_booking_rule_id, ''), COALESCE(drop_off_booking_rule_id, ''), COALESCE(location_id, ''), COALESCE(location_group_id, '')
FROM %s
WHERE start_pickup_drop_off_window != '' OR end_pickup_drop_off_window != ''`,
		storage.TableName(namespace, "stop_times")))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tripID string
		var line int
		var start, end, pickupRule, dropOffRule, locID, locGroupID string
		if err := rows.Scan(&tripID, &line, &start, &end, &pickupRule, &dropOffRule, &locID, &locGroupID); err != nil {
			return err
		}

		if locID == "" && locGroupID == "" {
			store.Add(errs.KindFlexInconsistentHalt, "trip", tripID, line,
				"a booking window is set but stop_time references neither a location nor a location_group")
		}

		if start != "" && end != "" {
			s, sok := hmsToSeconds(start)
			e, eok := hmsToSeconds(end)
			if sok && eok {
				if s > e {
					store.Add(errs.KindFlexInconsistentHalt, "trip", tripID, line,
						"booking window start %s is after end %s", start, end)
				} else if s == e {
					store.Add(errs.KindFlexZeroDurationWindow, "trip", tripID, line,
						"booking window start and end are identical (%s)", start)
				}
			}
		}

		if pickupRule == "" && dropOffRule == "" {
			store.Add(errs.KindFlexMissingBookingRule, "trip", tripID, line,
				"a flex stop_time has a booking window but no pickup or drop-off booking rule")
		}
	}
	return rows.Err()
}
