// Package svccal implements C8: expanding calendar.txt/
// calendar_dates.txt into one row per (service_id, date), and
// accumulating per-route-type-bucket service duration per date.
// Grounded on the teacher's ActiveServices query (storage/sqlite.go),
// generalized from "active on one date" into "every date across the
// feed's calendar span".
package svccal

import (
	"database/sql"
	"fmt"
	"time"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/model"
	"tidbyt.dev/gtfsdb/storage"
)

// Result carries the expanded dates and duration buckets, mirroring
// spec.md §6's ValidationResult service summary.
type Result struct {
	Dates     []model.ServiceDate
	Durations map[string]*model.ServiceDuration
}

// Expand reads calendar/calendar_dates/trips/stop_times for namespace
// and writes service_dates + service_durations, registering
// SERVICE_NEVER_ACTIVE, TRIP_NEVER_ACTIVE, SERVICE_UNUSED and
// DATE_NO_SERVICE as it goes.
func Expand(backend storage.Backend, namespace string, store *errs.Store) (*Result, error) {
	calendars, err := loadCalendars(backend, namespace)
	if err != nil {
		return nil, err
	}
	exceptions, err := loadCalendarDates(backend, namespace)
	if err != nil {
		return nil, err
	}

	activeDates := map[string]map[string]bool{} // service_id -> date -> active

	for _, c := range calendars {
		dates, err := expandCalendar(c)
		if err != nil {
			return nil, fmt.Errorf("expanding calendar %s: %w", c.ServiceID, err)
		}
		set := activeDates[c.ServiceID]
		if set == nil {
			set = map[string]bool{}
			activeDates[c.ServiceID] = set
		}
		for _, d := range dates {
			set[d] = true
		}
	}

	for _, e := range exceptions {
		set := activeDates[e.ServiceID]
		if set == nil {
			set = map[string]bool{}
			activeDates[e.ServiceID] = set
		}
		switch e.ExceptionType {
		case model.ExceptionTypeAdded:
			set[e.Date] = true
		case model.ExceptionTypeRemoved:
			delete(set, e.Date)
		}
	}

	for serviceID, set := range activeDates {
		if len(set) == 0 {
			store.Add(errs.KindServiceNeverActive, "calendar", serviceID, 0,
				"service %s is never active on any date", serviceID)
		}
	}

	tripServices, err := loadTripServices(backend, namespace)
	if err != nil {
		return nil, err
	}
	usedServices := map[string]bool{}
	for tripID, serviceID := range tripServices {
		set, ok := activeDates[serviceID]
		if !ok || len(set) == 0 {
			store.Add(errs.KindTripNeverActive, "trip", tripID, 0,
				"trip %s's service %s is never active", tripID, serviceID)
			continue
		}
		usedServices[serviceID] = true
	}
	for serviceID := range activeDates {
		if !usedServices[serviceID] {
			store.Add(errs.KindServiceUnused, "calendar", serviceID, 0,
				"service %s has no trips", serviceID)
		}
	}

	dates := make([]model.ServiceDate, 0)
	for serviceID, set := range activeDates {
		for date := range set {
			dates = append(dates, model.ServiceDate{ServiceID: serviceID, Date: date})
		}
	}

	if len(calendars) > 0 || len(exceptions) > 0 {
		min, max := dateRange(calendars, exceptions)
		for d := min; !d.After(max); d = d.AddDate(0, 0, 1) {
			key := d.Format("20060102")
			anyActive := false
			for _, set := range activeDates {
				if set[key] {
					anyActive = true
					break
				}
			}
			if !anyActive {
				store.Add(errs.KindDateNoService, "date", key, 0, "no service is active on %s", key)
			}
		}
	}

	durations, err := computeDurations(backend, namespace, activeDates, tripServices)
	if err != nil {
		return nil, err
	}

	if err := writeDates(backend, namespace, dates); err != nil {
		return nil, err
	}
	if err := writeDurations(backend, namespace, durations); err != nil {
		return nil, err
	}

	return &Result{Dates: dates, Durations: durations}, nil
}

func expandCalendar(c model.Calendar) ([]string, error) {
	start, err := time.Parse("20060102", c.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse("20060102", c.EndDate)
	if err != nil {
		return nil, err
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.Weekday&(1<<uint(d.Weekday())) != 0 {
			dates = append(dates, d.Format("20060102"))
		}
	}
	return dates, nil
}

func dateRange(calendars []model.Calendar, exceptions []model.CalendarDate) (time.Time, time.Time) {
	var min, max time.Time
	consider := func(s string) {
		d, err := time.Parse("20060102", s)
		if err != nil {
			return
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	for _, c := range calendars {
		consider(c.StartDate)
		consider(c.EndDate)
	}
	for _, e := range exceptions {
		consider(e.Date)
	}
	return min, max
}

func loadCalendars(backend storage.Backend, namespace string) ([]model.Calendar, error) {
	rows, err := backend.Query(fmt.Sprintf(
		"SELECT service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date FROM %s",
		storage.TableName(namespace, "calendar")))
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	var out []model.Calendar
	for rows.Next() {
		var c model.Calendar
		var mon, tue, wed, thu, fri, sat, sun string
		if err := rows.Scan(&c.ServiceID, &mon, &tue, &wed, &thu, &fri, &sat, &sun, &c.StartDate, &c.EndDate); err != nil {
			return nil, err
		}
		c.Weekday = weekdayMask(sun, mon, tue, wed, thu, fri, sat)
		out = append(out, c)
	}
	return out, rows.Err()
}

// weekdayMask builds the bitmask with bit (1<<time.Weekday) set per
// active day; time.Sunday == 0.
func weekdayMask(sun, mon, tue, wed, thu, fri, sat string) int8 {
	var mask int8
	set := func(v string, bit int8) {
		if v == "1" {
			mask |= bit
		}
	}
	set(sun, 1<<0)
	set(mon, 1<<1)
	set(tue, 1<<2)
	set(wed, 1<<3)
	set(thu, 1<<4)
	set(fri, 1<<5)
	set(sat, 1<<6)
	return mask
}

func loadCalendarDates(backend storage.Backend, namespace string) ([]model.CalendarDate, error) {
	rows, err := backend.Query(fmt.Sprintf(
		"SELECT service_id, date, exception_type FROM %s", storage.TableName(namespace, "calendar_dates")))
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	var out []model.CalendarDate
	for rows.Next() {
		var cd model.CalendarDate
		var exc string
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &exc); err != nil {
			return nil, err
		}
		if exc == "1" {
			cd.ExceptionType = model.ExceptionTypeAdded
		} else {
			cd.ExceptionType = model.ExceptionTypeRemoved
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

func loadTripServices(backend storage.Backend, namespace string) (map[string]string, error) {
	rows, err := backend.Query(fmt.Sprintf("SELECT trip_id, service_id FROM %s", storage.TableName(namespace, "trips")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var tripID, serviceID string
		if err := rows.Scan(&tripID, &serviceID); err != nil {
			return nil, err
		}
		out[tripID] = serviceID
	}
	return out, rows.Err()
}

// computeDurations sums trip duration (last stop_time minus first)
// into per-date, per-route-type buckets: bus, tram, metro, rail and a
// running total, for every date a trip's service is active on.
func computeDurations(
	backend storage.Backend,
	namespace string,
	activeDates map[string]map[string]bool,
	tripServices map[string]string,
) (map[string]*model.ServiceDuration, error) {
	tripRouteType, tripDuration, err := loadTripDurations(backend, namespace)
	if err != nil {
		return nil, err
	}

	durations := map[string]*model.ServiceDuration{}
	get := func(date string) *model.ServiceDuration {
		d, ok := durations[date]
		if !ok {
			d = &model.ServiceDuration{Date: date}
			durations[date] = d
		}
		return d
	}

	for tripID, serviceID := range tripServices {
		set := activeDates[serviceID]
		secs, ok := tripDuration[tripID]
		if !ok || !secs.Valid {
			continue
		}
		routeType := tripRouteType[tripID]
		for date, active := range set {
			if !active {
				continue
			}
			d := get(date)
			d.Total += int64(secs.Value)
			switch routeType {
			case model.RouteTypeBus:
				d.Bus += int64(secs.Value)
			case model.RouteTypeTram:
				d.Tram += int64(secs.Value)
			case model.RouteTypeSubway:
				d.Metro += int64(secs.Value)
			case model.RouteTypeRail:
				d.Rail += int64(secs.Value)
			}
		}
	}
	return durations, nil
}

func loadTripDurations(backend storage.Backend, namespace string) (map[string]model.RouteType, map[string]model.OptionalInt, error) {
	routeByTrip := map[string]string{}
	routeType := map[string]model.RouteType{}

	tripRows, err := backend.Query(fmt.Sprintf("SELECT trip_id, route_id FROM %s", storage.TableName(namespace, "trips")))
	if err != nil {
		return nil, nil, err
	}
	for tripRows.Next() {
		var tripID, routeID string
		if err := tripRows.Scan(&tripID, &routeID); err != nil {
			tripRows.Close()
			return nil, nil, err
		}
		routeByTrip[tripID] = routeID
	}
	tripRows.Close()
	if err := tripRows.Err(); err != nil {
		return nil, nil, err
	}

	routeRows, err := backend.Query(fmt.Sprintf("SELECT route_id, route_type FROM %s", storage.TableName(namespace, "routes")))
	if err != nil {
		return nil, nil, err
	}
	routeTypeByID := map[string]int{}
	for routeRows.Next() {
		var routeID string
		var rt int
		if err := routeRows.Scan(&routeID, &rt); err != nil {
			routeRows.Close()
			return nil, nil, err
		}
		routeTypeByID[routeID] = rt
	}
	routeRows.Close()
	if err := routeRows.Err(); err != nil {
		return nil, nil, err
	}
	for tripID, routeID := range routeByTrip {
		routeType[tripID] = model.RouteType(routeTypeByID[routeID])
	}

	stopTimeRows, err := backend.Query(fmt.Sprintf(
		"SELECT trip_id, MIN(arrival_time), MAX(departure_time) FROM %s GROUP BY trip_id",
		storage.TableName(namespace, "stop_times")))
	if err != nil {
		return nil, nil, err
	}
	defer stopTimeRows.Close()

	durations := map[string]model.OptionalInt{}
	for stopTimeRows.Next() {
		var tripID string
		var minArr, maxDep sql.NullString
		if err := stopTimeRows.Scan(&tripID, &minArr, &maxDep); err != nil {
			return nil, nil, err
		}
		if !minArr.Valid || !maxDep.Valid {
			durations[tripID] = model.Missing
			continue
		}
		a, errA := parseSeconds(minArr.String)
		b, errB := parseSeconds(maxDep.String)
		if errA != nil || errB != nil {
			durations[tripID] = model.Missing
			continue
		}
		durations[tripID] = model.Int(b - a)
	}

	return routeType, durations, stopTimeRows.Err()
}

func parseSeconds(hms string) (int, error) {
	var h, m, s int
	_, err := fmt.Sscanf(hms, "%d:%d:%d", &h, &m, &s)
	if err != nil {
		return 0, err
	}
	return h*3600 + m*60 + s, nil
}

func writeDates(backend storage.Backend, namespace string, dates []model.ServiceDate) error {
	ddl := storage.TableDDL{
		Name: storage.TableName(namespace, "service_dates"),
		Columns: []storage.ColumnDDL{
			{Name: "service_id", Type: "TEXT"},
			{Name: "date", Type: "TEXT"},
		},
	}
	if err := backend.CreateTable(namespace, ddl); err != nil {
		return err
	}
	if err := backend.BeginBulk(ddl.Name, []string{"service_id", "date"}); err != nil {
		return err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, storage.Row{d.ServiceID, d.Date})
	}
	if len(rows) == 0 {
		return nil
	}
	return backend.BulkCopy(rows)
}

func writeDurations(backend storage.Backend, namespace string, durations map[string]*model.ServiceDuration) error {
	ddl := storage.TableDDL{
		Name: storage.TableName(namespace, "service_durations"),
		Columns: []storage.ColumnDDL{
			{Name: "date", Type: "TEXT"},
			{Name: "bus", Type: "INTEGER"},
			{Name: "tram", Type: "INTEGER"},
			{Name: "metro", Type: "INTEGER"},
			{Name: "rail", Type: "INTEGER"},
			{Name: "total", Type: "INTEGER"},
		},
	}
	if err := backend.CreateTable(namespace, ddl); err != nil {
		return err
	}
	if err := backend.BeginBulk(ddl.Name, []string{"date", "bus", "tram", "metro", "rail", "total"}); err != nil {
		return err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(durations))
	for _, d := range durations {
		rows = append(rows, storage.Row{d.Date, d.Bus, d.Tram, d.Metro, d.Rail, d.Total})
	}
	if len(rows) == 0 {
		return nil
	}
	return backend.BulkCopy(rows)
}
