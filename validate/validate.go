// Package validate implements C9: the semantic validators that run
// after loading, referential checking, pattern finding and calendar
// expansion. Each validator lives in its own file, following the
// teacher's one-file-per-concern layout (parse/agency.go,
// parse/stops.go, ...) and the theoremus-urban-solutions
// GTFS validator pack's grouping of checks by topic.
package validate

import (
	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// Result is the outcome of running every validator, anchored on the
// shared errs.Store every validator appends to.
type Result struct {
	Errors *errs.Store
}

type namedCheck struct {
	name string
	fn   func(storage.Backend, string, *errs.Store) error
}

// Run executes every validator against namespace in sequence. They
// share one errs.Store with single-writer discipline (spec.md §5), so
// running them serially is correct; triptimes.go additionally fans
// out its own per-trip checks across a worker pool internally since
// those checks are independent and append-only.
//
// A validator that panics or returns an error is recorded as
// VALIDATOR_FAILED rather than aborting the rest of the pipeline, so
// one broken check never prevents the others from running.
func Run(backend storage.Backend, namespace string, store *errs.Store) (*Result, error) {
	checks := []namedCheck{
		{"trip_times", checkTripTimes},
		{"speeds", checkSpeeds},
		{"names", checkNames},
		{"duplicate_stops", checkDuplicateStops},
		{"overlapping_trips", checkOverlappingTrips},
		{"flex_consistency", checkFlexConsistency},
		{"conditional_requirements", checkConditionalRequirements},
	}

	for _, c := range checks {
		runCheck(c, backend, namespace, store)
	}

	return &Result{Errors: store}, nil
}

// runCheck isolates one validator: a panic is recovered and a returned
// error is caught, both surfacing as a single VALIDATOR_FAILED record
// instead of taking down Run.
func runCheck(c namedCheck, backend storage.Backend, namespace string, store *errs.Store) {
	defer func() {
		if r := recover(); r != nil {
			store.Add(errs.KindValidatorFailed, "validator", c.name, 0, "%s panicked: %v", c.name, r)
		}
	}()
	if err := c.fn(backend, namespace, store); err != nil {
		store.Add(errs.KindValidatorFailed, "validator", c.name, 0, "%s failed: %s", c.name, err)
	}
}
