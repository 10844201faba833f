// Package pattern implements C7: grouping trips into patterns by
// their ordered sequence of stop/location halts, naming each pattern
// via a four-tier fallback, and computing per-halt travel/dwell
// times relative to each pattern's associated trip.
package pattern

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/model"
	"tidbyt.dev/gtfsdb/storage"
)

// halt is one stop_time reduced to the fields that matter for pattern
// equivalence: the stop/location it touches and its pickup/drop-off
// rules. shape_dist_traveled and headsign do not participate in the
// equivalence key.
type halt struct {
	kind       model.HaltKind
	id         string
	pickup     int
	dropOff    int
}

type tripHalts struct {
	tripID  string
	routeID string
	halts   []halt
	// arrival[i]/departure[i] hold the halt's times in seconds, and
	// windowStart[i]/windowEnd[i] its booking window; each is -1 when
	// the corresponding column is empty.
	arrival   []int
	departure []int
	isFlex    []bool
	windowStart []int
	windowEnd   []int
}

// Find groups every trip in namespace into patterns, writes
// patterns/pattern_stops/pattern_locations/pattern_stop_areas, and
// updates trips.pattern_id via a temp-table join rather than one
// UPDATE per trip.
func Find(backend storage.Backend, namespace string, store *errs.Store) error {
	trips, err := loadTripHalts(backend, namespace)
	if err != nil {
		return err
	}

	groups := map[string][]tripHalts{}
	var order []string
	for _, t := range trips {
		key := equivalenceKey(t.routeID, t.halts)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	names, err := loadHaltNames(backend, namespace)
	if err != nil {
		return err
	}

	var allPatterns []*patternRecord
	byRoute := map[string][]*patternRecord{}

	for _, key := range order {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool { return members[i].tripID < members[j].tripID })

		associated := members[0]
		patternID := patternIDFor(associated.routeID, key)

		stopIDs := make([]string, len(associated.halts))
		for i, h := range associated.halts {
			stopIDs[i] = h.id
		}

		pr := &patternRecord{
			patternID:  patternID,
			routeID:    associated.routeID,
			associated: associated,
			members:    members,
			stopIDs:    stopIDs,
		}

		if len(stopIDs) == 0 {
			store.Add(errs.KindPatternUnnamed, "pattern", associated.tripID, 0, "trip %s has no stop_times", associated.tripID)
			pr.name = pr.prefix() + "empty" + pr.suffix()
			pr.named = true
		}

		allPatterns = append(allPatterns, pr)
		byRoute[pr.routeID] = append(byRoute[pr.routeID], pr)
	}

	for _, prs := range byRoute {
		assignNames(prs, names, store)
	}

	var patterns []model.Pattern
	var stopHalts, locationHalts, areaHalts []model.PatternHalt
	tripPatternID := map[string]string{}

	for _, pr := range allPatterns {
		patterns = append(patterns, model.Pattern{
			ID:             pr.patternID,
			RouteID:        pr.routeID,
			Name:           pr.name,
			AssociatedTrip: pr.associated.tripID,
			TripCount:      len(pr.members),
		})

		halts := computeHaltTimes(pr.patternID, pr.associated)
		for _, h := range halts {
			switch h.Kind {
			case model.HaltStop:
				stopHalts = append(stopHalts, h)
			case model.HaltLocation:
				locationHalts = append(locationHalts, h)
			case model.HaltStopArea:
				areaHalts = append(areaHalts, h)
			}
		}

		for _, m := range pr.members {
			tripPatternID[m.tripID] = pr.patternID
		}
	}

	if err := writePatterns(backend, namespace, patterns); err != nil {
		return err
	}
	if err := writeHalts(backend, namespace, "pattern_stops", stopHalts); err != nil {
		return err
	}
	if err := writeHalts(backend, namespace, "pattern_locations", locationHalts); err != nil {
		return err
	}
	if err := writeHalts(backend, namespace, "pattern_stop_areas", areaHalts); err != nil {
		return err
	}
	if err := updateTripPatterns(backend, namespace, tripPatternID); err != nil {
		return err
	}

	return nil
}

// equivalenceKey hashes (route_id, ordered halt keys), resolving
// INT_MISSING (unset pickup/drop_off_type) to 0 before hashing, per
// spec.md §4.6.
func equivalenceKey(routeID string, halts []halt) string {
	var b strings.Builder
	b.WriteString(routeID)
	for _, h := range halts {
		fmt.Fprintf(&b, "|%d:%s:%d:%d", h.kind, h.id, h.pickup, h.dropOff)
	}
	return b.String()
}

func patternIDFor(routeID, key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("p_%s_%s", routeID, hex.EncodeToString(sum[:])[:12])
}

func loadTripHalts(backend storage.Backend, namespace string) ([]tripHalts, error) {
	rows, err := backend.Query(fmt.Sprintf(`
SELECT st.trip_id, t.route_id, COALESCE(st.stop_id, ''), COALESCE(st.location_group_id, ''), COALESCE(st.location_id, ''),
       COALESCE(st.arrival_time, ''), COALESCE(st.departure_time, ''), COALESCE(st.pickup_type, '0'), COALESCE(st.drop_off_type, '0'),
       COALESCE(st.start_pickup_drop_off_window, ''), COALESCE(st.end_pickup_drop_off_window, ''), st.stop_sequence
FROM %s st JOIN %s t ON st.trip_id = t.trip_id
ORDER BY st.trip_id, st.stop_sequence`,
		storage.TableName(namespace, "stop_times"), storage.TableName(namespace, "trips")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTrip := map[string]*tripHalts{}
	var order []string

	for rows.Next() {
		var tripID, routeID, stopID, locGroupID, locID, arr, dep string
		var pickup, dropOff, seq int
		var winStart, winEnd string
		if err := rows.Scan(&tripID, &routeID, &stopID, &locGroupID, &locID, &arr, &dep, &pickup, &dropOff, &winStart, &winEnd, &seq); err != nil {
			return nil, err
		}

		th, ok := byTrip[tripID]
		if !ok {
			th = &tripHalts{tripID: tripID, routeID: routeID}
			byTrip[tripID] = th
			order = append(order, tripID)
		}

		kind, id := classifyHalt(stopID, locGroupID, locID)
		th.halts = append(th.halts, halt{kind: kind, id: id, pickup: pickup, dropOff: dropOff})

		isFlex := winStart != "" || winEnd != ""
		th.isFlex = append(th.isFlex, isFlex)

		a, aok := seconds(arr)
		d, dok := seconds(dep)
		if !aok {
			a = -1
		}
		if !dok {
			d = -1
		}
		th.arrival = append(th.arrival, a)
		th.departure = append(th.departure, d)

		ws, wsok := seconds(winStart)
		we, weok := seconds(winEnd)
		if !wsok {
			ws = -1
		}
		if !weok {
			we = -1
		}
		th.windowStart = append(th.windowStart, ws)
		th.windowEnd = append(th.windowEnd, we)
	}

	out := make([]tripHalts, 0, len(order))
	for _, tripID := range order {
		out = append(out, *byTrip[tripID])
	}
	return out, rows.Err()
}

func classifyHalt(stopID, locGroupID, locID string) (model.HaltKind, string) {
	if locID != "" {
		return model.HaltLocation, locID
	}
	if locGroupID != "" {
		return model.HaltStopArea, locGroupID
	}
	return model.HaltStop, stopID
}

func seconds(hms string) (int, bool) {
	if len(hms) < 7 {
		return 0, false
	}
	var h, m, s int
	if _, err := fmt.Sscanf(hms, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, false
	}
	return h*3600 + m*60 + s, true
}

// computeHaltTimes assigns DefaultTravelTime/DefaultDwellTime to each
// position in the associated trip, using the "previous departure"
// rule: travel time from the previous halt's departure to this halt's
// arrival, dwell time from this halt's arrival to its departure. A
// flex halt without a fixed time instead uses its booking window
// bounds; a halt that has neither yields a missing (propagated,
// never-zero) value.
func computeHaltTimes(patternID string, t tripHalts) []model.PatternHalt {
	out := make([]model.PatternHalt, len(t.halts))
	prevDeparture := model.Missing

	for i, h := range t.halts {
		arrival := optionalFromSeconds(t.arrival[i])
		departure := optionalFromSeconds(t.departure[i])

		if t.isFlex[i] {
			if !arrival.Valid {
				arrival = optionalFromSeconds(t.windowStart[i])
			}
			if !departure.Valid {
				departure = optionalFromSeconds(t.windowEnd[i])
			}
		}

		travel := model.Missing
		if i > 0 {
			travel = arrival.Sub(prevDeparture)
		}
		dwell := departure.Sub(arrival)

		out[i] = model.PatternHalt{
			PatternID:         patternID,
			StopSequence:      uint32(i + 1),
			Kind:              h.kind,
			StopOrLocationID:  h.id,
			PickupType:        h.pickup,
			DropOffType:       h.dropOff,
			DefaultTravelTime: travel,
			DefaultDwellTime:  dwell,
		}

		if departure.Valid {
			prevDeparture = departure
		} else if arrival.Valid {
			prevDeparture = arrival
		} else {
			prevDeparture = model.Missing
		}
	}
	return out
}

func optionalFromSeconds(s int) model.OptionalInt {
	if s < 0 {
		return model.Missing
	}
	return model.Int(s)
}

// patternRecord is one pattern as seen during naming: its own halt
// sequence plus enough about its trip group to write the final rows
// once every pattern on its route has a name.
type patternRecord struct {
	patternID  string
	routeID    string
	associated tripHalts
	members    []tripHalts
	stopIDs    []string
	name       string
	named      bool
}

func (pr *patternRecord) prefix() string { return fmt.Sprintf("%d stops ", len(pr.stopIDs)) }
func (pr *patternRecord) suffix() string { return fmt.Sprintf(" (%d trips)", len(pr.members)) }

// loadHaltNames resolves every stop/location/location_group id a
// pattern might halt at to its display name, so pattern names read
// "from Main St to Elm St" rather than "from s1 to s7". A table a
// namespace never loaded (e.g. no locations.geojson) contributes no
// names rather than failing the lookup.
func loadHaltNames(backend storage.Backend, namespace string) (map[string]string, error) {
	names := map[string]string{}
	if err := loadNamesInto(backend, names, storage.TableName(namespace, "stops"), "stop_id", "stop_name"); err != nil {
		return nil, err
	}
	if err := loadNamesInto(backend, names, storage.TableName(namespace, "locations"), "id", "stop_name"); err != nil {
		return nil, err
	}
	if err := loadNamesInto(backend, names, storage.TableName(namespace, "location_groups"), "location_group_id", "location_group_name"); err != nil {
		return nil, err
	}
	return names, nil
}

func loadNamesInto(backend storage.Backend, into map[string]string, table, idCol, nameCol string) error {
	rows, err := backend.Query(fmt.Sprintf("SELECT %s, COALESCE(%s, '') FROM %s", idCol, nameCol, table))
	if err != nil {
		// The table was never loaded for this namespace; nothing to add.
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		if name != "" {
			into[id] = name
		}
	}
	return rows.Err()
}

func displayName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

// assignNames applies the four-tier naming fallback from spec.md
// §4.6 step 3 to every pattern of one route: patterns are grouped by
// endpoint pair, and each group is named together so the via/
// local/express tiers can be judged across the whole group rather
// than one pattern at a time.
func assignNames(prs []*patternRecord, names map[string]string, store *errs.Store) {
	byEndpoint := map[[2]string][]*patternRecord{}
	for _, pr := range prs {
		if pr.named {
			continue
		}
		k := [2]string{pr.stopIDs[0], pr.stopIDs[len(pr.stopIDs)-1]}
		byEndpoint[k] = append(byEndpoint[k], pr)
	}
	for _, group := range byEndpoint {
		nameGroup(group, names, store)
	}
}

// nameGroup names every pattern sharing one (from, to) endpoint pair
// on a route.
func nameGroup(group []*patternRecord, names map[string]string, store *errs.Store) {
	fromName := displayName(names, group[0].stopIDs[0])
	toName := displayName(names, group[0].stopIDs[len(group[0].stopIDs)-1])

	if len(group) == 1 {
		pr := group[0]
		pr.name = pr.prefix() + fmt.Sprintf("from %s to %s", fromName, toName) + pr.suffix()
		pr.named = true
		return
	}

	// Tier 2 is all-or-nothing across the group: a via stop only
	// disambiguates if every pattern in the group has one unique to
	// it, otherwise some pair in the group remains indistinguishable
	// and the group falls through to the local/express tier.
	vias := make([]string, len(group))
	allUnique := true
	for i, pr := range group {
		via, ok := uniqueViaStop(pr, group)
		if !ok {
			allUnique = false
			break
		}
		vias[i] = via
	}
	if allUnique {
		for i, pr := range group {
			pr.name = pr.prefix() + fmt.Sprintf("from %s to %s via %s", fromName, toName, displayName(names, vias[i])) + pr.suffix()
			pr.named = true
		}
		return
	}

	if len(group) == 2 && isStrictSupersetPair(group[0].stopIDs, group[1].stopIDs) {
		longer, shorter := group[0], group[1]
		if len(shorter.stopIDs) > len(longer.stopIDs) {
			longer, shorter = shorter, longer
		}
		longer.name = longer.prefix() + fmt.Sprintf("from %s to %s local", fromName, toName) + longer.suffix()
		longer.named = true
		shorter.name = shorter.prefix() + fmt.Sprintf("from %s to %s express", fromName, toName) + shorter.suffix()
		shorter.named = true
		return
	}

	for _, pr := range group {
		store.Add(errs.KindPatternUnnamed, "pattern", pr.associated.tripID, 0,
			"could not derive a distinguishing name for trip %s's pattern", pr.associated.tripID)
		pr.name = pr.prefix() + fmt.Sprintf("from %s to %s like trip %s", fromName, toName, pr.associated.tripID) + pr.suffix()
		pr.named = true
	}
}

// uniqueViaStop looks for a non-endpoint stop in pr's sequence that no
// other pattern in group touches.
func uniqueViaStop(pr *patternRecord, group []*patternRecord) (string, bool) {
	if len(pr.stopIDs) <= 2 {
		return "", false
	}
	other := map[string]bool{}
	for _, s := range group {
		if s == pr {
			continue
		}
		for _, id := range s.stopIDs {
			other[id] = true
		}
	}
	for _, id := range pr.stopIDs[1 : len(pr.stopIDs)-1] {
		if !other[id] {
			return id, true
		}
	}
	return "", false
}

// isStrictSupersetPair reports whether the shorter of a and b is an
// order-preserving subsequence of the longer, i.e. a plausible
// local/express relationship.
func isStrictSupersetPair(a, b []string) bool {
	if len(a) == len(b) {
		return false
	}
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	return isSubsequence(shorter, longer)
}

func isSubsequence(short, long []string) bool {
	i := 0
	for _, id := range long {
		if i < len(short) && id == short[i] {
			i++
		}
	}
	return i == len(short)
}

func writePatterns(backend storage.Backend, namespace string, patterns []model.Pattern) error {
	ddl := storage.TableDDL{
		Name: storage.TableName(namespace, "patterns"),
		Columns: []storage.ColumnDDL{
			{Name: "pattern_id", Type: "TEXT"},
			{Name: "route_id", Type: "TEXT"},
			{Name: "name", Type: "TEXT"},
			{Name: "associated_trip", Type: "TEXT"},
			{Name: "trip_count", Type: "INTEGER"},
		},
	}
	if err := backend.CreateTable(namespace, ddl); err != nil {
		return err
	}
	if err := backend.BeginBulk(ddl.Name, []string{"pattern_id", "route_id", "name", "associated_trip", "trip_count"}); err != nil {
		return err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(patterns))
	for _, p := range patterns {
		rows = append(rows, storage.Row{p.ID, p.RouteID, p.Name, p.AssociatedTrip, p.TripCount})
	}
	if len(rows) == 0 {
		return nil
	}
	return backend.BulkCopy(rows)
}

func writeHalts(backend storage.Backend, namespace, table string, halts []model.PatternHalt) error {
	ddl := storage.TableDDL{
		Name: storage.TableName(namespace, table),
		Columns: []storage.ColumnDDL{
			{Name: "pattern_id", Type: "TEXT"},
			{Name: "stop_sequence", Type: "INTEGER"},
			{Name: "stop_or_location_id", Type: "TEXT"},
			{Name: "pickup_type", Type: "INTEGER"},
			{Name: "drop_off_type", Type: "INTEGER"},
			{Name: "default_travel_time", Type: "INTEGER"},
			{Name: "default_dwell_time", Type: "INTEGER"},
		},
	}
	if err := backend.CreateTable(namespace, ddl); err != nil {
		return err
	}
	if err := backend.BeginBulk(ddl.Name, []string{
		"pattern_id", "stop_sequence", "stop_or_location_id", "pickup_type", "drop_off_type",
		"default_travel_time", "default_dwell_time",
	}); err != nil {
		return err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(halts))
	for _, h := range halts {
		rows = append(rows, storage.Row{
			h.PatternID, h.StopSequence, h.StopOrLocationID, h.PickupType, h.DropOffType,
			optIntOrNil(h.DefaultTravelTime), optIntOrNil(h.DefaultDwellTime),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return backend.BulkCopy(rows)
}

func optIntOrNil(o model.OptionalInt) interface{} {
	if !o.Valid {
		return nil
	}
	return o.Value
}

// updateTripPatterns assigns trips.pattern_id via a temp table plus a
// join-based update instead of one UPDATE per trip, mirroring the
// teacher's batched-write philosophy
// (storage.SQLiteFeedWriter.BeginStopTimes/EndStopTimes) applied here
// to an update rather than an insert.
func updateTripPatterns(backend storage.Backend, namespace string, tripPatternID map[string]string) error {
	tempTable := storage.TableName(namespace, "trip_pattern_tmp")
	if err := backend.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", tempTable)); err != nil {
		return err
	}
	if err := backend.Exec(fmt.Sprintf("CREATE TABLE %s (trip_id TEXT, pattern_id TEXT)", tempTable)); err != nil {
		return err
	}

	if err := backend.BeginBulk(tempTable, []string{"trip_id", "pattern_id"}); err != nil {
		return err
	}
	rows := make([]storage.Row, 0, len(tripPatternID))
	for tripID, patternID := range tripPatternID {
		rows = append(rows, storage.Row{tripID, patternID})
	}
	if len(rows) > 0 {
		if err := backend.BulkCopy(rows); err != nil {
			backend.EndBulk()
			return err
		}
	}
	if err := backend.EndBulk(); err != nil {
		return err
	}

	tripsTable := storage.TableName(namespace, "trips")
	update := fmt.Sprintf(
		"UPDATE %s SET pattern_id = (SELECT pattern_id FROM %s WHERE %s.trip_id = %s.trip_id)",
		tripsTable, tempTable, tempTable, tripsTable,
	)
	if err := backend.Exec(update); err != nil {
		return err
	}

	return backend.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", tempTable))
}
