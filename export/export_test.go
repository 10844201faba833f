package export_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/testutil"
)

func TestExportRoundTripsLoadedTable(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,Main St,40.1,-74.2",
		},
	})

	data, err := svc.Export(namespace)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var stopsFile *zip.File
	for _, f := range zr.File {
		if f.Name == "stops.txt" {
			stopsFile = f
		}
	}
	require.NotNil(t, stopsFile, "expected stops.txt in the exported archive")

	rc, err := stopsFile.Open()
	require.NoError(t, err)
	defer rc.Close()

	buf := &bytes.Buffer{}
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "s1")
	assert.Contains(t, buf.String(), "Main St")
}

func TestExportOmitsTablesNeverLoaded(t *testing.T) {
	svc, namespace := testutil.BuildArchive(t, "sqlite", map[string][]string{
		"stops.txt": {
			"stop_id,stop_lat,stop_lon",
			"s1,1,1",
		},
	})

	data, err := svc.Export(namespace)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for _, f := range zr.File {
		assert.NotEqual(t, "shapes.txt", f.Name, "shapes was never loaded for this namespace")
	}
}
