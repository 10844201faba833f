package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/testutil"
)

func kinds(t *testing.T, records []errs.Record) []errs.Kind {
	t.Helper()
	var ks []errs.Kind
	for _, r := range records {
		ks = append(ks, r.Kind)
	}
	return ks
}

func TestCheckTripTimesFlagsDecreasingStopTime(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
			"s2,2,2",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:10:00,08:10:00",
			"t1,s2,2,08:00:00,08:00:00", // earlier than the previous departure
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindDecreasingStopTime)
}

func TestCheckSpeedsFlagsImplausibleTravel(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,0,0",
			"s2,10,10", // ~1500km away
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,08:01:00,08:01:00", // one minute later: impossible speed
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindFastTravelBetweenStops)
}

func TestCheckSpeedsFlagsImplausiblySlowTravel(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,0,0",
			"s2,0.1,0", // ~11km away
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,20:00:00,20:00:00", // 12 hours for 11km: implausibly slow
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindSlowTravelBetweenStops)
}

func TestCheckSpeedsSkipsFlexHaltsWithNoFixedCoordinates(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"location_groups.txt": {
			"location_group_id,location_group_name",
			"lg1,Flex zone",
		},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,0,0",
		},
		"stop_times.txt": {
			"trip_id,stop_id,location_group_id,stop_sequence,start_pickup_drop_off_window,end_pickup_drop_off_window",
			"t1,,lg1,1,08:00:00,08:30:00",
			"t1,s1,,2,09:00:00,09:00:00",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindTripSpeedNotValidated)
}

func TestCheckNamesFlagsLongNameContainingShortName(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {
			"route_id,route_type,route_short_name,route_long_name",
			"r1,3,42,Route 42 Express",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindRouteLongNameContainsSN)
}

func TestCheckDuplicateStopsFlagsCoincidentSameNamedStops(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,Main St,40.0,-74.0",
			"s2,Main St,40.0,-74.0",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindDuplicateStop)
}

func TestCheckOverlappingTripsFlagsSharedBlock(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt": {
			"trip_id,route_id,service_id,block_id",
			"t1,r1,wk,b1",
			"t2,r1,wk,b1",
		},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
			"s2,2,2",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,09:00:00,09:00:00",
			"t2,s1,1,08:30:00,08:30:00", // starts before t1 ends
			"t2,s2,2,09:30:00,09:30:00",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindOverlappingTripsInBlock)
}

func TestCheckFlexConsistencyFlagsMissingBookingRule(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,start_pickup_drop_off_window,end_pickup_drop_off_window",
			"t1,s1,1,08:00:00,09:00:00",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,1,1,20240101,20240107",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindFlexMissingBookingRule)
}

func TestCheckConditionalRequirementsFlagsMissingStopCoordinates(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon,location_type",
			"s1,,,1", // location_type 1 (station) requires coordinates
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.Contains(t, kinds(t, result.Errors.Records()), errs.KindConditionallyRequired)
}

func TestCheckConditionalRequirementsFlagsZoneIDRequiredByFareRules(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
		},
		"fare_attributes.txt": {
			"fare_id,price,currency_type,payment_method,transfers",
			"f1,1.50,USD,0,1",
		},
		"fare_rules.txt": {
			"fare_id,origin_id",
			"f1,1",
		},
	})

	result, err := svc.Validate(namespace)
	require.NoError(t, err)

	found := false
	for _, r := range result.Errors.Records() {
		if r.Kind == errs.KindConditionallyRequired && r.EntityID == "1" {
			found = true
		}
	}
	assert.True(t, found, "expected a CONDITIONALLY_REQUIRED record for zone_id 1")
}
