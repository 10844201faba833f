package refcheck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/refcheck"
	"tidbyt.dev/gtfsdb/testutil"
)

func TestCheckFlagsOrphanReference(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,does-not-exist,wk"},
	})

	store := errs.NewStore()
	require.NoError(t, refcheck.Check(svc.Backend, namespace, store))

	found := false
	for _, r := range store.Records() {
		if r.Kind == errs.KindReferentialIntegrity && r.EntityID == "does-not-exist" {
			found = true
		}
	}
	assert.True(t, found, "expected a REFERENTIAL_INTEGRITY record for trips.route_id")
}

func TestCheckFlagsUnresolvedUnionReferenceAsForeignKeyViolation(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,nowhere,1,08:00:00,08:00:00",
		},
	})

	store := errs.NewStore()
	require.NoError(t, refcheck.Check(svc.Backend, namespace, store))

	found := false
	for _, r := range store.Records() {
		if r.Kind == errs.KindForeignKeyViolation && r.EntityID == "nowhere" {
			found = true
		}
	}
	assert.True(t, found, "expected a MISSING_FOREIGN_TABLE_REFERENCE record for stop_times.stop_id")
}

func TestCheckResolvedReferenceIsSilent(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,0,0,20240101,20241231",
		},
	})

	store := errs.NewStore()
	require.NoError(t, refcheck.Check(svc.Backend, namespace, store))

	assert.Equal(t, 0, store.Len())
}
