// Package archive opens a GTFS zip archive and exposes its member
// CSV tables as plain readers, generalizing the teacher's
// parse.ParseStatic (parse/parse.go), which opens a zip.Reader and
// then switches on a fixed map of the 7 GTFS filenames it knows
// about. Here the file map is the schema registry, so every table —
// GTFS-Flex included — goes through the same open/BOM-strip/
// subdirectory-check path.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spkg/bom"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/schema"
)

// Reader wraps an open zip archive, indexed by GTFS table name.
type Reader struct {
	zr       *zip.Reader
	byTable  map[string]*zip.File
	Checksum uint32
}

// Open reads the zip at filePath into memory and indexes its members
// by the schema registry's table filenames.
func Open(filePath string, errStore *errs.Store) (*Reader, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}
	return OpenBytes(data, errStore)
}

func readFile(p string) ([]byte, error) {
	return os.ReadFile(p)
}

// OpenBytes is the same as Open but takes an already-read archive,
// the way parse.ParseStatic accepts a []byte body fetched over HTTP.
func OpenBytes(data []byte, errStore *errs.Store) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	byTable := map[string]*zip.File{}
	checksum := uint32(0)

	for _, f := range zr.File {
		checksum ^= f.CRC32

		dir, base := path.Split(f.Name)
		if dir != "" && dir != "./" {
			if errStore != nil {
				errStore.Add(errs.KindTableInSubdirectory, "file", f.Name, 0,
					"%s is nested in a subdirectory and will be ignored", f.Name)
			}
			continue
		}

		table, ok := tableForFilename(base)
		if !ok {
			if errStore != nil && base != "" && !strings.HasPrefix(base, ".") {
				errStore.Add(errs.KindUnknownFileFormat, "file", base, 0,
					"%s is not a recognized GTFS file", base)
			}
			continue
		}

		if _, dup := byTable[table]; dup {
			if errStore != nil {
				errStore.Add(errs.KindDuplicateHeader, "file", base, 0,
					"%s appears more than once in the archive", base)
			}
			continue
		}
		byTable[table] = f
	}

	return &Reader{zr: zr, byTable: byTable, Checksum: checksum}, nil
}

func tableForFilename(name string) (string, bool) {
	for _, t := range schema.Tables {
		if t.Filename == name {
			return t.Name, true
		}
	}
	return "", false
}

// Has reports whether table is present in the archive.
func (r *Reader) Has(table string) bool {
	_, ok := r.byTable[table]
	return ok
}

// Open returns a BOM-stripped reader for table's CSV content, along
// with its raw byte size (used for the TABLE_TOO_LONG check).
func (r *Reader) Open(table string) (io.ReadCloser, int64, error) {
	f, ok := r.byTable[table]
	if !ok {
		return nil, 0, fmt.Errorf("table %s not present", table)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	return io.NopCloser(bom.NewReader(rc)), int64(f.UncompressedSize64), nil
}

// OpenLocationsGeoJSON returns the raw bytes of locations.geojson, if
// present. Unlike the CSV tables this file is not line-oriented, so
// it is read whole rather than streamed.
func (r *Reader) OpenLocationsGeoJSON() ([]byte, bool, error) {
	f, ok := r.byTable["locations"]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(bom.NewReader(rc))
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Tables lists the tables present in the archive, sorted for
// deterministic iteration in callers that don't care about load
// order (e.g. logging a summary).
func (r *Reader) Tables() []string {
	names := make([]string, 0, len(r.byTable))
	for name := range r.byTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
