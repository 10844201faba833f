// Package load implements C5: reading a GTFS archive table by table,
// in the explicit topological order of schema.Tables, coercing every
// field through the schema package and writing rows to a Backend in
// batches. It generalizes the teacher's parse.ParseStatic
// (parse/parse.go), which called one hand-written ParseXxx function
// per table in a fixed sequence; here one loop drives all of them,
// GTFS-Flex tables included.
package load

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"tidbyt.dev/gtfsdb/archive"
	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/schema"
	"tidbyt.dev/gtfsdb/storage"
)

// InsertBatchSize is the number of rows buffered before a BulkCopy
// flush, matching spec.md §4.4 step 4.
const InsertBatchSize = 5000

// MaxTableBytes bounds the uncompressed size of any one CSV member,
// guarding against zip-bomb style archives.
const MaxTableBytes = 2 << 30 // 2 GiB

const namespaceAlphabet = "abcdefghijklmnopqrstuvwxyz"

// LoadResult summarizes one load: the namespace assigned, the row
// count per table, and the accumulated error store.
type LoadResult struct {
	Namespace string
	Filename  string
	Checksum  uint32
	Counts    map[string]int
	Errors    *errs.Store
}

// Load reads the archive at archivePath, creates a fresh namespace
// for it, and writes every recognized table into backend.
func Load(archivePath string, backend storage.Backend) (*LoadResult, error) {
	store := errs.NewStore()

	rdr, err := archive.Open(archivePath, store)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	namespace := NewNamespace()

	if err := ensureFeedsTable(backend); err != nil {
		return nil, err
	}

	counts := map[string]int{}

	checkRequiredTables(rdr, store)

	for _, t := range schema.Tables {
		if t.Name == "locations" {
			// locations.geojson is not CSV; loadLocations below handles
			// it separately.
			continue
		}
		if !rdr.Has(t.Name) {
			continue
		}
		n, err := loadTable(backend, namespace, t, rdr, store)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", t.Name, err)
		}
		counts[t.Name] = n
	}

	if rdr.Has("locations") {
		n, err := loadLocations(backend, namespace, rdr, store)
		if err != nil {
			return nil, fmt.Errorf("loading locations: %w", err)
		}
		counts["locations"] = n
	}

	if err := FlushErrors(backend, namespace, store); err != nil {
		return nil, fmt.Errorf("flushing errors: %w", err)
	}

	if err := backend.Exec(
		"INSERT INTO feeds (namespace, filename, checksum, loaded_at, snapshot_of) VALUES ("+
			backend.Placeholder(1)+", "+backend.Placeholder(2)+", "+backend.Placeholder(3)+", "+backend.Placeholder(4)+", "+backend.Placeholder(5)+")",
		namespace, archivePath, rdr.Checksum, time.Now().UTC().Format(time.RFC3339), "",
	); err != nil {
		return nil, fmt.Errorf("writing feed record: %w", err)
	}

	return &LoadResult{
		Namespace: namespace,
		Filename:  archivePath,
		Checksum:  rdr.Checksum,
		Counts:    counts,
		Errors:    store,
	}, nil
}

func ensureFeedsTable(backend storage.Backend) error {
	return backend.CreateTable("", feedsTableDDLShim())
}

// NewNamespace generates a short random, URL-safe table-name prefix.
// Length varies 6-10 characters so namespaces don't all look
// identical in logs/tests.
func NewNamespace() string {
	n := 6 + rand.Intn(5)
	b := make([]byte, n)
	for i := range b {
		b[i] = namespaceAlphabet[rand.Intn(len(namespaceAlphabet))]
	}
	return string(b)
}

func checkRequiredTables(rdr *archive.Reader, store *errs.Store) {
	for _, t := range schema.Tables {
		switch t.Requirement {
		case schema.Required:
			if !rdr.Has(t.Name) {
				store.Add(errs.KindMissingTable, "table", t.Name, 0, "%s is required but missing", t.Filename)
			}
		case schema.RequiredConditionally:
			if !rdr.Has(t.Name) {
				sibling, ok := schema.ByName(t.ConditionalWith)
				if !ok || !rdr.Has(sibling.Name) {
					store.Add(errs.KindMissingTable, "table", t.Name, 0,
						"one of %s or %s is required", t.Filename, sibling.Filename)
				}
			}
		}
	}
}

func loadTable(backend storage.Backend, namespace string, t schema.Table, rdr *archive.Reader, store *errs.Store) (int, error) {
	rc, size, err := rdr.Open(t.Name)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	if size > MaxTableBytes {
		store.Add(errs.KindTableTooLong, "table", t.Name, 0, "%s exceeds the maximum supported size", t.Filename)
		return 0, nil
	}

	if err := backend.CreateTable(namespace, storage.DDLFor(namespace, t)); err != nil {
		return 0, fmt.Errorf("creating table: %w", err)
	}

	// gocsv.LazyCSVReader gives the exact same lazy-quote,
	// leading-space-trimming csv.Reader configuration (BOMs are already
	// stripped by archive.Reader.Open) the teacher uses for every table in
	// parse/parse.go, just driven here by the schema registry instead
	// of a hand-written struct per file.
	r := gocsv.LazyCSVReader(bufio.NewReader(rc))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		store.Add(errs.KindEmptyTable, "table", t.Name, 0, "%s has no header row", t.Filename)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}

	colIndex, err := resolveHeader(t, header, store)
	if err != nil {
		return 0, err
	}

	columns := append(append([]string{}, t.FieldNames()...))
	if t.Name == "stop_times" {
		columns = append(columns, "line_number")
	}
	tableName := storage.TableName(namespace, t.Name)

	if err := backend.BeginBulk(tableName, columns); err != nil {
		return 0, err
	}
	defer backend.EndBulk()

	batch := make([]storage.Row, 0, InsertBatchSize)
	lineNo := 1
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := backend.BulkCopy(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			store.Add(errs.KindCSVParsingFailed, "table", t.Name, lineNo, "%s", err)
			continue
		}
		if len(rec) != len(header) {
			store.Add(errs.KindWrongNumberOfFields, "table", t.Name, lineNo,
				"expected %d fields, got %d", len(header), len(rec))
			continue
		}

		row, ok := coerceRow(t, colIndex, rec, lineNo, store)
		if !ok {
			continue
		}
		if t.Name == "stop_times" {
			row = append(row, lineNo)
		}
		batch = append(batch, row)
		total++

		if len(batch) >= InsertBatchSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	if total == 0 {
		store.Add(errs.KindEmptyTable, "table", t.Name, 0, "%s has a header but no data rows", t.Filename)
	}

	return total, nil
}

// resolveHeader maps each schema Field to its column position in
// header, registering MISSING_COLUMN/DUPLICATE_HEADER/
// COLUMN_NAME_UNSAFE as appropriate.
func resolveHeader(t schema.Table, header []string, store *errs.Store) (map[string]int, error) {
	seen := map[string]int{}
	pos := map[string]int{}
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name != raw {
			store.Add(errs.KindLeadingOrTrailingWhite, "column", name, 0, "%s column header has surrounding whitespace", t.Filename)
		}
		if strings.ContainsAny(name, "\x00") {
			store.Add(errs.KindColumnNameUnsafe, "column", name, 0, "%s has an unsafe column name", t.Filename)
			continue
		}
		if _, dup := seen[name]; dup {
			store.Add(errs.KindDuplicateHeader, "column", name, 0, "%s column %q repeated", t.Filename, name)
			continue
		}
		seen[name] = i
		pos[name] = i
	}

	for _, f := range t.Fields {
		if _, ok := pos[f.Name]; !ok && f.Required {
			store.Add(errs.KindMissingColumn, "column", f.Name, 0, "%s is missing required column %s", t.Filename, f.Name)
		}
	}

	for name := range seen {
		if _, known := t.Field(name); !known {
			store.Add(errs.KindUnrecognizedColumn, "column", name, 0, "%s has unrecognized column %s", t.Filename, name)
		}
	}

	return pos, nil
}

func coerceRow(t schema.Table, colIndex map[string]int, rec []string, lineNo int, store *errs.Store) (storage.Row, bool) {
	row := make(storage.Row, len(t.Fields))
	keyValue := ""
	ok := true

	for i, f := range t.Fields {
		idx, present := colIndex[f.Name]
		raw := ""
		if present && idx < len(rec) {
			raw = rec[idx]
		}

		if raw == "" {
			if f.Required {
				store.Add(errs.KindMissingRequiredField, t.Name, entityLabel(t, keyValue, lineNo), lineNo,
					"%s is required", f.Name)
				ok = false
			}
			row[i] = nil
			continue
		}

		if strings.ContainsAny(raw, "\t\r\n") {
			store.Add(errs.KindIllegalFieldValue, t.Name, entityLabel(t, keyValue, lineNo), lineNo,
				"%s contains a tab, carriage return or line feed", f.Name)
		}

		res := schema.Parse(f.Type, raw)
		if res.Err != "" {
			store.Add(res.Err, t.Name, entityLabel(t, keyValue, lineNo), lineNo, "%s: %s", f.Name, res.Msg)
			row[i] = nil
			continue
		}

		if f.Name == t.KeyField {
			keyValue = res.Value.Raw
		}

		row[i] = columnValue(f.Type, res.Value)
	}

	return row, ok
}

func entityLabel(t schema.Table, keyValue string, lineNo int) string {
	if keyValue != "" {
		return keyValue
	}
	return fmt.Sprintf("%s:%d", t.Name, lineNo)
}

func columnValue(t schema.SemanticType, v schema.Value) interface{} {
	switch t {
	case schema.TypeInt:
		return v.Int
	case schema.TypeOptionalInt:
		if !v.OptInt.Valid {
			return nil
		}
		return v.OptInt.Value
	case schema.TypeFloat, schema.TypeLatitude, schema.TypeLongitude:
		return v.Float
	default:
		return v.Str
	}
}

// FlushErrors persists every record accumulated in store into
// <namespace>_errors, creating the table if this is the first writer
// to touch it (load calls it after the initial parse pass; Validate
// calls it again after referential/pattern/calendar/semantic checks
// add to the same store).
func FlushErrors(backend storage.Backend, namespace string, store *errs.Store) error {
	ddl := storage.TableDDL{
		Name: storage.TableName(namespace, "errors"),
		Columns: []storage.ColumnDDL{
			{Name: "kind", Type: "TEXT"},
			{Name: "severity", Type: "TEXT"},
			{Name: "entity_type", Type: "TEXT"},
			{Name: "entity_id", Type: "TEXT"},
			{Name: "line_number", Type: "INTEGER"},
			{Name: "field", Type: "TEXT"},
			{Name: "message", Type: "TEXT"},
		},
	}
	if err := backend.CreateTable(namespace, ddl); err != nil {
		return err
	}

	cols := []string{"kind", "severity", "entity_type", "entity_id", "line_number", "field", "message"}
	if err := backend.BeginBulk(ddl.Name, cols); err != nil {
		return err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(store.Records()))
	for _, r := range store.Records() {
		rows = append(rows, storage.Row{
			string(r.Kind), r.Severity.String(), r.EntityType, r.EntityID, r.Line, r.Field, r.Message,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return backend.BulkCopy(rows)
}

func feedsTableDDLShim() storage.TableDDL {
	return storage.TableDDL{
		Name: "feeds",
		Columns: []storage.ColumnDDL{
			{Name: "namespace", Type: "TEXT"},
			{Name: "filename", Type: "TEXT"},
			{Name: "checksum", Type: "INTEGER"},
			{Name: "loaded_at", Type: "TEXT"},
			{Name: "snapshot_of", Type: "TEXT"},
		},
	}
}

// loadLocations loads locations.geojson's Features into the
// namespace's locations table. GeoJSON parsing is kept intentionally
// minimal: only the "id" and "stop_name" properties are extracted,
// since the relational loader has no use for full geometry beyond
// round-tripping it opaquely through export.
func loadLocations(backend storage.Backend, namespace string, rdr *archive.Reader, store *errs.Store) (int, error) {
	data, present, err := rdr.OpenLocationsGeoJSON()
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, nil
	}

	features, err := parseGeoJSONFeatures(data)
	if err != nil {
		store.Add(errs.KindFlexLocationGeometryBad, "table", "locations", 0, "locations.geojson: %s", err)
		return 0, nil
	}

	t, _ := schema.ByName("locations")
	if err := backend.CreateTable(namespace, storage.DDLFor(namespace, t)); err != nil {
		return 0, err
	}
	tableName := storage.TableName(namespace, "locations")
	if err := backend.BeginBulk(tableName, []string{"id", "stop_name", "geojson"}); err != nil {
		return 0, err
	}
	defer backend.EndBulk()

	rows := make([]storage.Row, 0, len(features))
	for _, f := range features {
		if f.ID == "" {
			store.Add(errs.KindMissingRequiredField, "locations", "", 0, "a Feature in locations.geojson has no id")
			continue
		}
		rows = append(rows, storage.Row{f.ID, f.Name, f.Raw})
	}
	if err := backend.BulkCopy(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
