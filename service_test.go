package gtfsdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/storage"
	"tidbyt.dev/gtfsdb/testutil"
)

func TestServiceLoadValidateExportLifecycle(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,Main St,40.0,-74.0",
			"s2,Elm St,40.1,-74.1",
		},
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,08:10:00,08:10:00",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wk,1,1,1,1,1,0,0,20240101,20240107",
		},
	})
	require.NotEmpty(t, namespace)

	result, err := svc.Validate(namespace)
	require.NoError(t, err)
	assert.NotNil(t, result.Services)
	assert.NotZero(t, len(result.Services.Dates))

	data, err := svc.Export(namespace)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestServiceSnapshotCopiesArchiveTables(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,Main St,40.0,-74.0",
		},
	})

	snapshot, err := svc.Snapshot(namespace)
	require.NoError(t, err)
	assert.NotEqual(t, namespace, snapshot)

	data, err := svc.Export(snapshot)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestServiceDeleteDropsNamespace(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
		},
	})

	require.NoError(t, svc.Delete(namespace))

	_, err := svc.Backend.Query("SELECT stop_id FROM " + storage.TableName(namespace, "stops"))
	assert.Error(t, err, "querying a dropped namespace's tables should fail")
}
