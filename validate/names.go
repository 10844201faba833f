package validate

import (
	"fmt"
	"strings"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// checkNames applies the small set of route-naming heuristics GTFS
// consumers rely on: short_name shouldn't be unreasonably long,
// long_name shouldn't just repeat short_name, and desc shouldn't
// merely restate the name.
func checkNames(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf(
		"SELECT route_id, COALESCE(route_short_name, ''), COALESCE(route_long_name, ''), COALESCE(route_desc, '') FROM %s",
		storage.TableName(namespace, "routes")))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var routeID, short, long, desc string
		if err := rows.Scan(&routeID, &short, &long, &desc); err != nil {
			return err
		}

		if len(short) > 12 {
			store.Add(errs.KindRouteShortNameTooLong, "route", routeID, 0,
				"route_short_name %q is %d characters, unusually long for a short name", short, len(short))
		}

		if short != "" && long != "" && strings.Contains(strings.ToLower(long), strings.ToLower(short)) && long != short {
			store.Add(errs.KindRouteLongNameContainsSN, "route", routeID, 0,
				"route_long_name %q contains route_short_name %q", long, short)
		}

		if desc != "" && (strings.EqualFold(desc, short) || strings.EqualFold(desc, long)) {
			store.Add(errs.KindSameNameAndDescForRoute, "route", routeID, 0,
				"route_desc %q duplicates the route's name rather than describing it", desc)
		}
	}
	return rows.Err()
}
