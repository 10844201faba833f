package svccal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/svccal"
	"tidbyt.dev/gtfsdb/testutil"
)

func TestExpandProducesOneDatePerActiveWeekday(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,0,0,20240101,20240107",
		},
		"trips.txt": {"trip_id,route_id,service_id", "t1,r1,wk"},
		"routes.txt": {"route_id,route_type", "r1,3"},
	})

	store := errs.NewStore()
	result, err := svccal.Expand(svc.Backend, namespace, store)
	require.NoError(t, err)

	// Jan 1 2024 is a Monday; the week has 5 weekdays in range.
	assert.Len(t, result.Dates, 5)
}

func TestExpandFlagsServiceNeverActive(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"dead,0,0,0,0,0,0,0,20240101,20240107",
		},
	})

	store := errs.NewStore()
	_, err := svccal.Expand(svc.Backend, namespace, store)
	require.NoError(t, err)

	found := false
	for _, r := range store.Records() {
		if r.Kind == errs.KindServiceNeverActive && r.EntityID == "dead" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExpandFlagsTripNeverActiveAndServiceUnused(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"dead,0,0,0,0,0,0,0,20240101,20240107",
			"unused,1,1,1,1,1,1,1,20240101,20240107",
		},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,dead"},
		"routes.txt": {"route_id,route_type", "r1,3"},
	})

	store := errs.NewStore()
	_, err := svccal.Expand(svc.Backend, namespace, store)
	require.NoError(t, err)

	var kinds []errs.Kind
	for _, r := range store.Records() {
		kinds = append(kinds, r.Kind)
	}
	assert.Contains(t, kinds, errs.KindTripNeverActive)
	assert.Contains(t, kinds, errs.KindServiceUnused)
}
