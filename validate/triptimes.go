package validate

import (
	"fmt"
	"sort"
	"sync"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// tripTimesWorkerCount bounds the number of goroutines checking trips
// concurrently, grounded on the theoremus-urban-solutions GTFS
// validator pack's validateAllTripsParallel, which fans stop-time
// ordering checks out across a fixed worker pool rather than one
// goroutine per trip.
const tripTimesWorkerCount = 8

type stopTimeRow struct {
	tripID       string
	stopSequence int
	arrival      string
	departure    string
	timepoint    int
	lineNumber   int
}

// checkTripTimes verifies that, within each trip, stop_times are
// non-decreasing in arrival/departure and that a timepoint=1 row
// always carries both times.
func checkTripTimes(backend storage.Backend, namespace string, store *errs.Store) error {
	rows, err := backend.Query(fmt.Sprintf(
		"SELECT trip_id, stop_sequence, COALESCE(arrival_time, ''), COALESCE(departure_time, ''), COALESCE(timepoint, '0'), line_number FROM %s ORDER BY trip_id, stop_sequence",
		storage.TableName(namespace, "stop_times")))
	if err != nil {
		return err
	}
	defer rows.Close()

	byTrip := map[string][]stopTimeRow{}
	var order []string
	for rows.Next() {
		var r stopTimeRow
		if err := rows.Scan(&r.tripID, &r.stopSequence, &r.arrival, &r.departure, &r.timepoint, &r.lineNumber); err != nil {
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

	validateAllTripsParallel(order, byTrip, store)
	return nil
}

func validateAllTripsParallel(order []string, byTrip map[string][]stopTimeRow, store *errs.Store) {
	jobs := make(chan string, len(order))
	var wg sync.WaitGroup
	var mu sync.Mutex

	worker := func() {
		defer wg.Done()
		for tripID := range jobs {
			findings := validateTripTimes(tripID, byTrip[tripID])
			if len(findings) == 0 {
				continue
			}
			mu.Lock()
			for _, f := range findings {
				store.AddRecord(f)
			}
			mu.Unlock()
		}
	}

	workers := tripTimesWorkerCount
	if len(order) < workers {
		workers = len(order)
	}
	if workers == 0 {
		return
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}
	for _, tripID := range order {
		jobs <- tripID
	}
	close(jobs)
	wg.Wait()
}

func validateTripTimes(tripID string, rows []stopTimeRow) []errs.Record {
	sort.Slice(rows, func(i, j int) bool { return rows[i].stopSequence < rows[j].stopSequence })

	var findings []errs.Record
	prevDeparture := ""

	for _, r := range rows {
		if r.timepoint == 1 && (r.arrival == "" || r.departure == "") {
			findings = append(findings, errs.Record{
				Kind: errs.KindStopTimeTimepointWithoutTime, EntityType: "trip", EntityID: tripID, Line: r.lineNumber,
				Message: fmt.Sprintf("stop_sequence %d is a timepoint but is missing arrival or departure time", r.stopSequence),
			})
		}

		if r.arrival != "" && prevDeparture != "" && r.arrival < prevDeparture {
			findings = append(findings, errs.Record{
				Kind: errs.KindDecreasingStopTime, EntityType: "trip", EntityID: tripID, Line: r.lineNumber,
				Message: fmt.Sprintf("stop_sequence %d arrives at %s, before the previous departure %s", r.stopSequence, r.arrival, prevDeparture),
			})
		}
		if r.arrival != "" && r.departure != "" && r.departure < r.arrival {
			findings = append(findings, errs.Record{
				Kind: errs.KindDecreasingStopTime, EntityType: "trip", EntityID: tripID, Line: r.lineNumber,
				Message: fmt.Sprintf("stop_sequence %d departs at %s, before its own arrival %s", r.stopSequence, r.departure, r.arrival),
			})
		}

		if r.departure != "" {
			prevDeparture = r.departure
		} else if r.arrival != "" {
			prevDeparture = r.arrival
		}
	}

	return findings
}
