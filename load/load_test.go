package load_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/load"
	"tidbyt.dev/gtfsdb/storage"
	"tidbyt.dev/gtfsdb/testutil"
)

func writeTempZip(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "fixture-*.zip")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestLoadCountsRows(t *testing.T) {
	_, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
			"s2,2,2",
		},
	})
	require.NotEmpty(t, namespace)
}

func TestLoadMissingRequiredTableRecordsError(t *testing.T) {
	backend := testutil.BuildBackend(t, "sqlite")
	files := map[string][]string{
		"agency.txt": {"agency_name,agency_url,agency_timezone", "Test,http://example.com,UTC"},
	}
	buf := testutil.BuildZip(t, files)
	path := writeTempZip(t, buf)

	result, err := load.Load(path, backend)
	require.NoError(t, err)

	assert.True(t, result.Errors.Len() > 0)
}

func TestMissingRequiredColumnRecordsError(t *testing.T) {
	backend := testutil.BuildBackend(t, "sqlite")
	files := map[string][]string{
		"stops.txt": {
			"stop_lat,stop_lon", // missing required stop_id column
			"1,1",
		},
	}
	buf := testutil.BuildZip(t, files)
	path := writeTempZip(t, buf)

	result, err := load.Load(path, backend)
	require.NoError(t, err)

	found := false
	for _, r := range result.Errors.Records() {
		if r.Kind == errs.KindMissingColumn {
			found = true
		}
	}
	assert.True(t, found, "expected a MISSING_COLUMN record for the absent stop_id column")
}

func TestLoadLocationsGeoJSON(t *testing.T) {
	backend := testutil.BuildBackend(t, "sqlite")
	files := map[string][]string{
		"agency.txt": {"agency_name,agency_url,agency_timezone", "Test,http://example.com,UTC"},
		"locations.geojson": {
			`{"type":"FeatureCollection","features":[` +
				`{"type":"Feature","id":"loc1","properties":{"stop_name":"Flex Zone"},"geometry":{"type":"Point","coordinates":[1,2]}}` +
				`]}`,
		},
	}
	buf := testutil.BuildZip(t, files)
	path := writeTempZip(t, buf)

	result, err := load.Load(path, backend)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counts["locations"])

	rows, err := backend.Query("SELECT id, stop_name FROM " + storage.TableName(result.Namespace, "locations"))
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var id, name string
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, "loc1", id)
	assert.Equal(t, "Flex Zone", name)
}

func TestNewNamespaceLengthVaries(t *testing.T) {
	for i := 0; i < 50; i++ {
		ns := load.NewNamespace()
		assert.True(t, len(ns) >= 6 && len(ns) <= 10)
	}
}
