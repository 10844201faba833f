package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/pattern"
	"tidbyt.dev/gtfsdb/storage"
	"tidbyt.dev/gtfsdb/testutil"
)

func TestFindGroupsTripsWithIdenticalHaltsIntoOnePattern(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"t1,r1,wk",
			"t2,r1,wk",
		},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
			"s2,2,2",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,08:10:00,08:10:00",
			"t2,s1,1,09:00:00,09:00:00",
			"t2,s2,2,09:10:00,09:10:00",
		},
	})

	store := errs.NewStore()
	require.NoError(t, pattern.Find(svc.Backend, namespace, store))

	rows, err := svc.Backend.Query("SELECT pattern_id FROM " + storage.TableName(namespace, "trips"))
	require.NoError(t, err)
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids[id] = true
	}
	require.NoError(t, rows.Err())

	assert.Len(t, ids, 1, "both trips share the same stop sequence and should collapse to one pattern")
}

func TestFindSeparatesDifferingHaltSequences(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"t1,r1,wk",
			"t2,r1,wk",
		},
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
			"s2,2,2",
			"s3,3,3",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,08:00:00,08:00:00",
			"t1,s2,2,08:10:00,08:10:00",
			"t2,s1,1,09:00:00,09:00:00",
			"t2,s3,2,09:10:00,09:10:00",
		},
	})

	store := errs.NewStore()
	require.NoError(t, pattern.Find(svc.Backend, namespace, store))

	rows, err := svc.Backend.Query("SELECT DISTINCT pattern_id FROM " + storage.TableName(namespace, "trips"))
	require.NoError(t, err)
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		count++
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, 2, count)
}

func TestFindNamesAPatternFromEndpointsWhenUnambiguous(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt":  {"trip_id,route_id,service_id", "t1,r1,wk"},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"a,Alpha,1,1",
			"b,Bravo,2,2",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,a,1,08:00:00,08:00:00",
			"t1,b,2,08:10:00,08:10:00",
		},
	})

	store := errs.NewStore()
	require.NoError(t, pattern.Find(svc.Backend, namespace, store))

	assert.Equal(t, "2 stops from Alpha to Bravo (1 trips)", patternName(t, svc.Backend, namespace, "t1"))
}

// TestFindNamesLocalAndExpressPatterns exercises the scenario where
// two patterns on one route share an endpoint pair and one trip's
// halts are a strict superset of the other's, so neither a unique
// via-stop nor two distinct endpoint pairs can tell them apart and
// the local/express tier must kick in.
func TestFindNamesLocalAndExpressPatterns(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"routes.txt": {"route_id,route_type", "r1,3"},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"t1,r1,wk",
			"t2,r1,wk",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"a,Alpha,1,1",
			"b,Bravo,2,2",
			"c,Charlie,3,3",
			"d,Delta,4,4",
			"e,Echo,5,5",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,a,1,08:00:00,08:00:00",
			"t1,b,2,08:05:00,08:05:00",
			"t1,c,3,08:10:00,08:10:00",
			"t1,d,4,08:15:00,08:15:00",
			"t1,e,5,08:20:00,08:20:00",
			"t2,a,1,09:00:00,09:00:00",
			"t2,b,2,09:05:00,09:05:00",
			"t2,d,3,09:10:00,09:10:00",
			"t2,e,4,09:15:00,09:15:00",
		},
	})

	store := errs.NewStore()
	require.NoError(t, pattern.Find(svc.Backend, namespace, store))

	assert.Equal(t, "5 stops from Alpha to Echo local (1 trips)", patternName(t, svc.Backend, namespace, "t1"))
	assert.Equal(t, "4 stops from Alpha to Echo express (1 trips)", patternName(t, svc.Backend, namespace, "t2"))
}

func patternName(t *testing.T, backend storage.Backend, namespace, tripID string) string {
	t.Helper()
	row := backend.QueryRow(
		"SELECT p.name FROM "+storage.TableName(namespace, "patterns")+" p "+
			"JOIN "+storage.TableName(namespace, "trips")+" tr ON tr.pattern_id = p.pattern_id "+
			"WHERE tr.trip_id = "+backend.Placeholder(1),
		tripID,
	)
	var name string
	require.NoError(t, row.Scan(&name))
	return name
}
