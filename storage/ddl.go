package storage

import (
	"fmt"
	"strings"

	"tidbyt.dev/gtfsdb/schema"
)

// TableDDL is the backend-agnostic description of one CREATE TABLE
// statement, derived once from a schema.Table and then handed to
// whichever Backend is in use. This replaces the teacher's approach
// of hand-writing one CREATE TABLE string per table in each of
// storage/sqlite.go and storage/postgres.go.
type TableDDL struct {
	Name    string
	Columns []ColumnDDL
}

type ColumnDDL struct {
	Name string
	Type string
}

func sqlType(t schema.SemanticType) string {
	switch t {
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeOptionalInt:
		return "INTEGER"
	case schema.TypeFloat, schema.TypeLatitude, schema.TypeLongitude:
		return "REAL"
	default:
		return "TEXT"
	}
}

// DDLFor builds the TableDDL for table t as it will be stored under
// namespace.
func DDLFor(namespace string, t schema.Table) TableDDL {
	cols := make([]ColumnDDL, 0, len(t.Fields)+1)
	for _, f := range t.Fields {
		cols = append(cols, ColumnDDL{Name: f.Name, Type: sqlType(f.Type)})
	}
	if t.Name == "stop_times" {
		cols = append(cols, ColumnDDL{Name: "line_number", Type: "INTEGER"})
	}
	if t.Name == "trips" {
		cols = append(cols, ColumnDDL{Name: "pattern_id", Type: "TEXT"})
	}
	return TableDDL{Name: TableName(namespace, t.Name), Columns: cols}
}

// CreateTableSQL renders d as a CREATE TABLE IF NOT EXISTS statement.
// Both SQLite and Postgres accept this exact syntax, so it is shared
// rather than templated per backend.
func CreateTableSQL(d TableDDL) string {
	parts := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Name, strings.Join(parts, ", "))
}

// errorsTableDDL, feedsTableDDL and the DDL helpers below them
// describe tables that have no schema.Table entry because they are
// produced by the pipeline itself rather than read from an archive.
func errorsTableDDL(namespace string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, "errors"),
		Columns: []ColumnDDL{
			{Name: "kind", Type: "TEXT"},
			{Name: "severity", Type: "TEXT"},
			{Name: "entity_type", Type: "TEXT"},
			{Name: "entity_id", Type: "TEXT"},
			{Name: "line_number", Type: "INTEGER"},
			{Name: "field", Type: "TEXT"},
			{Name: "message", Type: "TEXT"},
		},
	}
}

func feedsTableDDL() TableDDL {
	return TableDDL{
		Name: "feeds",
		Columns: []ColumnDDL{
			{Name: "namespace", Type: "TEXT"},
			{Name: "filename", Type: "TEXT"},
			{Name: "checksum", Type: "INTEGER"},
			{Name: "loaded_at", Type: "TEXT"},
			{Name: "snapshot_of", Type: "TEXT"},
		},
	}
}

func patternsTableDDL(namespace string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, "patterns"),
		Columns: []ColumnDDL{
			{Name: "pattern_id", Type: "TEXT"},
			{Name: "route_id", Type: "TEXT"},
			{Name: "name", Type: "TEXT"},
			{Name: "associated_trip", Type: "TEXT"},
			{Name: "trip_count", Type: "INTEGER"},
		},
	}
}

func patternHaltsTableDDL(namespace, table string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, table),
		Columns: []ColumnDDL{
			{Name: "pattern_id", Type: "TEXT"},
			{Name: "stop_sequence", Type: "INTEGER"},
			{Name: "stop_or_location_id", Type: "TEXT"},
			{Name: "pickup_type", Type: "INTEGER"},
			{Name: "drop_off_type", Type: "INTEGER"},
			{Name: "default_travel_time", Type: "INTEGER"},
			{Name: "default_dwell_time", Type: "INTEGER"},
		},
	}
}

func servicesTableDDL(namespace string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, "services"),
		Columns: []ColumnDDL{
			{Name: "service_id", Type: "TEXT"},
			{Name: "start_date", Type: "TEXT"},
			{Name: "end_date", Type: "TEXT"},
		},
	}
}

func serviceDatesTableDDL(namespace string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, "service_dates"),
		Columns: []ColumnDDL{
			{Name: "service_id", Type: "TEXT"},
			{Name: "date", Type: "TEXT"},
		},
	}
}

func serviceDurationsTableDDL(namespace string) TableDDL {
	return TableDDL{
		Name: TableName(namespace, "service_durations"),
		Columns: []ColumnDDL{
			{Name: "date", Type: "TEXT"},
			{Name: "bus", Type: "INTEGER"},
			{Name: "tram", Type: "INTEGER"},
			{Name: "metro", Type: "INTEGER"},
			{Name: "rail", Type: "INTEGER"},
			{Name: "total", Type: "INTEGER"},
		},
	}
}

// DerivedTableDDLs returns the DDL for every table the pipeline
// creates beyond the schema registry's archive-backed tables.
func DerivedTableDDLs(namespace string) []TableDDL {
	return []TableDDL{
		errorsTableDDL(namespace),
		patternsTableDDL(namespace),
		patternHaltsTableDDL(namespace, "pattern_stops"),
		patternHaltsTableDDL(namespace, "pattern_locations"),
		patternHaltsTableDDL(namespace, "pattern_stop_areas"),
		servicesTableDDL(namespace),
		serviceDatesTableDDL(namespace),
		serviceDurationsTableDDL(namespace),
	}
}
