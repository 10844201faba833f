package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenBytesIndexesKnownTables(t *testing.T) {
	data := buildZip(t, map[string]string{
		"agency.txt": "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
		"stops.txt":  "stop_id,stop_lat,stop_lon\ns1,1,1\n",
	})

	store := errs.NewStore()
	r, err := OpenBytes(data, store)
	require.NoError(t, err)

	assert.True(t, r.Has("agency"))
	assert.True(t, r.Has("stops"))
	assert.False(t, r.Has("routes"))
	assert.Equal(t, []string{"agency", "stops"}, r.Tables())
	assert.Equal(t, 0, store.Len())
}

func TestOpenBytesUnknownFileRecordsWarning(t *testing.T) {
	data := buildZip(t, map[string]string{
		"agency.txt":  "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
		"mystery.txt": "a,b\n1,2\n",
	})

	store := errs.NewStore()
	r, err := OpenBytes(data, store)
	require.NoError(t, err)

	assert.False(t, r.Has("mystery"))
	assert.Equal(t, 1, store.Len())
}

func TestOpenBytesSubdirectoryIsIgnored(t *testing.T) {
	data := buildZip(t, map[string]string{
		"agency.txt":       "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
		"nested/stops.txt": "stop_id,stop_lat,stop_lon\ns1,1,1\n",
	})

	store := errs.NewStore()
	r, err := OpenBytes(data, store)
	require.NoError(t, err)

	assert.False(t, r.Has("stops"))
	assert.Equal(t, 1, store.Len())
}

func TestOpenBytesDuplicateFileRecordsError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for i := 0; i < 2; i++ {
		f, err := w.Create("agency.txt")
		require.NoError(t, err)
		_, err = f.Write([]byte("agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	store := errs.NewStore()
	r, err := OpenBytes(buf.Bytes(), store)
	require.NoError(t, err)

	assert.True(t, r.Has("agency"))
	assert.Equal(t, 1, store.Len())
}

func TestReaderOpenStripsBOM(t *testing.T) {
	content := "\xef\xbb\xbfagency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n"
	data := buildZip(t, map[string]string{"agency.txt": content})

	store := errs.NewStore()
	r, err := OpenBytes(data, store)
	require.NoError(t, err)

	rc, size, err := r.Open("agency")
	require.NoError(t, err)
	defer rc.Close()

	out, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(string(out), "\xef\xbb\xbf"))
	assert.True(t, size > 0)
}

func TestOpenBytesChecksumIsContentNotNameSensitive(t *testing.T) {
	same := map[string]string{
		"agency.txt": "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
		"stops.txt":  "stop_id,stop_lat,stop_lon\ns1,1,1\n",
	}
	r1, err := OpenBytes(buildZip(t, same), errs.NewStore())
	require.NoError(t, err)
	r2, err := OpenBytes(buildZip(t, same), errs.NewStore())
	require.NoError(t, err)
	assert.Equal(t, r1.Checksum, r2.Checksum, "identical member content should produce identical checksums")

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	f, err := w.Create("agency.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("agency_name,agency_url,agency_timezone\nDifferent,http://example.com,UTC\n"))
	require.NoError(t, err)
	g, err := w.Create("stops.txt")
	require.NoError(t, err)
	_, err = g.Write([]byte(same["stops.txt"]))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r3, err := OpenBytes(buf.Bytes(), errs.NewStore())
	require.NoError(t, err)
	assert.NotEqual(t, r1.Checksum, r3.Checksum, "different member content should change the checksum")
}

func TestOpenLocationsGeoJSON(t *testing.T) {
	data := buildZip(t, map[string]string{
		"agency.txt":        "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
		"locations.geojson": `{"type":"FeatureCollection","features":[]}`,
	})

	store := errs.NewStore()
	r, err := OpenBytes(data, store)
	require.NoError(t, err)

	out, ok, err := r.OpenLocationsGeoJSON()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(out), "FeatureCollection")
}

func TestOpenLocationsGeoJSONAbsent(t *testing.T) {
	data := buildZip(t, map[string]string{
		"agency.txt": "agency_name,agency_url,agency_timezone\nTest,http://example.com,UTC\n",
	})

	r, err := OpenBytes(data, errs.NewStore())
	require.NoError(t, err)

	_, ok, err := r.OpenLocationsGeoJSON()
	require.NoError(t, err)
	assert.False(t, ok)
}
