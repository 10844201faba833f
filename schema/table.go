// Package schema is the registry of GTFS and GTFS-Flex tables: their
// fields, semantic types and cross-table references. The loader,
// referential checker, storage DDL and exporter all walk this same
// registry instead of each hard-coding their own column lists, the
// way the teacher's `storage/sqlite.go` and `storage/postgres.go`
// each separately hard-code a `CREATE TABLE` string per GTFS table.
package schema

// Requirement says whether a table must be present in an archive.
type Requirement int

const (
	Required Requirement = iota
	RequiredConditionally
	Optional
)

// Reference describes a foreign key to a single table's key field.
type Reference struct {
	Table string
	Field string
}

// UnionReference describes a foreign key that may resolve against any
// one of several tables (e.g. stop_times.stop_id, which may name a
// stop, a location, or a location_group). Per spec.md §9's design
// note, this is never collapsed into a single id space: resolution
// succeeds if the value is found in ANY of Targets.
type UnionReference struct {
	Targets []Reference
}

// Field is one column descriptor.
type Field struct {
	Name       string
	Type       SemanticType
	Required   bool
	References *Reference
	Union      *UnionReference
}

// Table is one file descriptor: its columns, key field and whether it
// must appear in an archive.
type Table struct {
	Name            string
	Filename        string
	Fields          []Field
	KeyField        string
	ParentRefField  string
	Requirement     Requirement
	// ConditionalWith names the sibling table that, together with this
	// one, satisfies a RequiredConditionally pair (calendar.txt /
	// calendar_dates.txt: at least one of the two must be present).
	ConditionalWith string
}

func (t Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Tables is the full registry, in the explicit topological load order
// required by spec.md §9 ("must not rely on alphabetical order"):
// entities with no dependency on other tables load first, and a table
// referencing another always loads after it.
var Tables = []Table{
	agencyTable,
	levelsTable,
	stopsTable,
	routesTable,
	calendarTable,
	calendarDatesTable,
	shapesTable,
	bookingRulesTable,
	locationGroupsTable,
	locationsTable,
	locationGroupStopsTable,
	tripsTable,
	stopTimesTable,
	frequenciesTable,
	transfersTable,
	fareAttributesTable,
	fareRulesTable,
	feedInfoTable,
	attributionsTable,
	translationsTable,
	areasTable,
	stopAreasTable,
	pathwaysTable,
}

var agencyTable = Table{
	Name:     "agency",
	Filename: "agency.txt",
	KeyField: "agency_id",
	Requirement: Required,
	Fields: []Field{
		{Name: "agency_id", Type: TypeID},
		{Name: "agency_name", Type: TypeText, Required: true},
		{Name: "agency_url", Type: TypeURL, Required: true},
		{Name: "agency_timezone", Type: TypeTimezone, Required: true},
		{Name: "agency_lang", Type: TypeLanguage},
		{Name: "agency_phone", Type: TypePhone},
		{Name: "agency_fare_url", Type: TypeURL},
		{Name: "agency_email", Type: TypeEmail},
	},
}

var levelsTable = Table{
	Name:        "levels",
	Filename:    "levels.txt",
	KeyField:    "level_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "level_id", Type: TypeID, Required: true},
		{Name: "level_index", Type: TypeFloat, Required: true},
		{Name: "level_name", Type: TypeText},
	},
}

var stopsTable = Table{
	Name:        "stops",
	Filename:    "stops.txt",
	KeyField:    "stop_id",
	Requirement: Required,
	Fields: []Field{
		{Name: "stop_id", Type: TypeID, Required: true},
		{Name: "stop_code", Type: TypeText},
		{Name: "stop_name", Type: TypeText},
		{Name: "stop_desc", Type: TypeText},
		{Name: "stop_lat", Type: TypeLatitude},
		{Name: "stop_lon", Type: TypeLongitude},
		{Name: "zone_id", Type: TypeID},
		{Name: "stop_url", Type: TypeURL},
		{Name: "location_type", Type: TypeEnum},
		{Name: "parent_station", Type: TypeID, References: &Reference{Table: "stops", Field: "stop_id"}},
		{Name: "stop_timezone", Type: TypeTimezone},
		{Name: "wheelchair_boarding", Type: TypeEnum},
		{Name: "level_id", Type: TypeID, References: &Reference{Table: "levels", Field: "level_id"}},
		{Name: "platform_code", Type: TypeText},
	},
}

var routesTable = Table{
	Name:        "routes",
	Filename:    "routes.txt",
	KeyField:    "route_id",
	Requirement: Required,
	Fields: []Field{
		{Name: "route_id", Type: TypeID, Required: true},
		{Name: "agency_id", Type: TypeID, References: &Reference{Table: "agency", Field: "agency_id"}},
		{Name: "route_short_name", Type: TypeText},
		{Name: "route_long_name", Type: TypeText},
		{Name: "route_desc", Type: TypeText},
		{Name: "route_type", Type: TypeEnum, Required: true},
		{Name: "route_url", Type: TypeURL},
		{Name: "route_color", Type: TypeColor},
		{Name: "route_text_color", Type: TypeColor},
		{Name: "route_sort_order", Type: TypeOptionalInt},
		{Name: "continuous_pickup", Type: TypeEnum},
		{Name: "continuous_drop_off", Type: TypeEnum},
		{Name: "network_id", Type: TypeID},
	},
}

var calendarTable = Table{
	Name:            "calendar",
	Filename:        "calendar.txt",
	KeyField:        "service_id",
	Requirement:     RequiredConditionally,
	ConditionalWith: "calendar_dates",
	Fields: []Field{
		{Name: "service_id", Type: TypeID, Required: true},
		{Name: "monday", Type: TypeEnum, Required: true},
		{Name: "tuesday", Type: TypeEnum, Required: true},
		{Name: "wednesday", Type: TypeEnum, Required: true},
		{Name: "thursday", Type: TypeEnum, Required: true},
		{Name: "friday", Type: TypeEnum, Required: true},
		{Name: "saturday", Type: TypeEnum, Required: true},
		{Name: "sunday", Type: TypeEnum, Required: true},
		{Name: "start_date", Type: TypeDate, Required: true},
		{Name: "end_date", Type: TypeDate, Required: true},
	},
}

var calendarDatesTable = Table{
	Name:            "calendar_dates",
	Filename:        "calendar_dates.txt",
	Requirement:     RequiredConditionally,
	ConditionalWith: "calendar",
	Fields: []Field{
		{Name: "service_id", Type: TypeID, Required: true},
		{Name: "date", Type: TypeDate, Required: true},
		{Name: "exception_type", Type: TypeEnum, Required: true},
	},
}

var shapesTable = Table{
	Name:        "shapes",
	Filename:    "shapes.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "shape_id", Type: TypeID, Required: true},
		{Name: "shape_pt_lat", Type: TypeLatitude, Required: true},
		{Name: "shape_pt_lon", Type: TypeLongitude, Required: true},
		{Name: "shape_pt_sequence", Type: TypeInt, Required: true},
		{Name: "shape_dist_traveled", Type: TypeOptionalInt},
	},
}

var bookingRulesTable = Table{
	Name:        "booking_rules",
	Filename:    "booking_rules.txt",
	KeyField:    "booking_rule_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "booking_rule_id", Type: TypeID, Required: true},
		{Name: "booking_type", Type: TypeEnum, Required: true},
		{Name: "prior_notice_duration_min", Type: TypeOptionalInt},
		{Name: "prior_notice_duration_max", Type: TypeOptionalInt},
		{Name: "prior_notice_last_day", Type: TypeOptionalInt},
		{Name: "prior_notice_last_time", Type: TypeTime},
		{Name: "prior_notice_start_day", Type: TypeOptionalInt},
		{Name: "prior_notice_start_time", Type: TypeTime},
		{Name: "prior_notice_service_id", Type: TypeID, References: &Reference{Table: "calendar", Field: "service_id"}},
		{Name: "message", Type: TypeText},
		{Name: "pickup_message", Type: TypeText},
		{Name: "drop_off_message", Type: TypeText},
		{Name: "phone_number", Type: TypePhone},
		{Name: "info_url", Type: TypeURL},
		{Name: "booking_url", Type: TypeURL},
	},
}

var locationGroupsTable = Table{
	Name:        "location_groups",
	Filename:    "location_groups.txt",
	KeyField:    "location_group_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "location_group_id", Type: TypeID, Required: true},
		{Name: "location_group_name", Type: TypeText},
	},
}

// locationsTable describes locations.geojson, the one GTFS-Flex table
// that is not a CSV file. The loader and the exporter treat it
// specially (C3/C5/C10) but it still needs a registry entry so
// refcheck can resolve references to it and Snapshot copies it with
// the CSV tables.
var locationsTable = Table{
	Name:        "locations",
	Filename:    "locations.geojson",
	KeyField:    "id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "id", Type: TypeID, Required: true},
		{Name: "stop_name", Type: TypeText},
		{Name: "geojson", Type: TypeText},
	},
}

var locationGroupStopsTable = Table{
	Name:        "location_group_stops",
	Filename:    "location_group_stops.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "location_group_id", Type: TypeID, Required: true, References: &Reference{Table: "location_groups", Field: "location_group_id"}},
		{Name: "stop_id", Type: TypeID, Required: true, References: &Reference{Table: "stops", Field: "stop_id"}},
	},
}

var tripsTable = Table{
	Name:        "trips",
	Filename:    "trips.txt",
	KeyField:    "trip_id",
	Requirement: Required,
	Fields: []Field{
		{Name: "trip_id", Type: TypeID, Required: true},
		{Name: "route_id", Type: TypeID, Required: true, References: &Reference{Table: "routes", Field: "route_id"}},
		{Name: "service_id", Type: TypeID, Required: true, References: &Reference{Table: "calendar", Field: "service_id"}},
		{Name: "trip_headsign", Type: TypeText},
		{Name: "trip_short_name", Type: TypeText},
		{Name: "direction_id", Type: TypeEnum},
		{Name: "block_id", Type: TypeID},
		{Name: "shape_id", Type: TypeID, References: &Reference{Table: "shapes", Field: "shape_id"}},
		{Name: "wheelchair_accessible", Type: TypeEnum},
		{Name: "bikes_allowed", Type: TypeEnum},
	},
}

var stopOrLocationUnion = &UnionReference{Targets: []Reference{
	{Table: "stops", Field: "stop_id"},
	{Table: "locations", Field: "id"},
	{Table: "location_groups", Field: "location_group_id"},
}}

var stopTimesTable = Table{
	Name:        "stop_times",
	Filename:    "stop_times.txt",
	Requirement: Required,
	Fields: []Field{
		{Name: "trip_id", Type: TypeID, Required: true, References: &Reference{Table: "trips", Field: "trip_id"}},
		{Name: "stop_id", Type: TypeID, Union: stopOrLocationUnion},
		{Name: "location_group_id", Type: TypeID, References: &Reference{Table: "location_groups", Field: "location_group_id"}},
		{Name: "location_id", Type: TypeID, References: &Reference{Table: "locations", Field: "id"}},
		{Name: "arrival_time", Type: TypeTime},
		{Name: "departure_time", Type: TypeTime},
		{Name: "stop_sequence", Type: TypeInt, Required: true},
		{Name: "stop_headsign", Type: TypeText},
		{Name: "pickup_type", Type: TypeEnum},
		{Name: "drop_off_type", Type: TypeEnum},
		{Name: "continuous_pickup", Type: TypeEnum},
		{Name: "continuous_drop_off", Type: TypeEnum},
		{Name: "shape_dist_traveled", Type: TypeOptionalInt},
		{Name: "timepoint", Type: TypeEnum},
		{Name: "start_pickup_drop_off_window", Type: TypeTime},
		{Name: "end_pickup_drop_off_window", Type: TypeTime},
		{Name: "pickup_booking_rule_id", Type: TypeID, References: &Reference{Table: "booking_rules", Field: "booking_rule_id"}},
		{Name: "drop_off_booking_rule_id", Type: TypeID, References: &Reference{Table: "booking_rules", Field: "booking_rule_id"}},
	},
}

var frequenciesTable = Table{
	Name:        "frequencies",
	Filename:    "frequencies.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "trip_id", Type: TypeID, Required: true, References: &Reference{Table: "trips", Field: "trip_id"}},
		{Name: "start_time", Type: TypeTime, Required: true},
		{Name: "end_time", Type: TypeTime, Required: true},
		{Name: "headway_secs", Type: TypeInt, Required: true},
		{Name: "exact_times", Type: TypeEnum},
	},
}

var transfersTable = Table{
	Name:        "transfers",
	Filename:    "transfers.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "from_stop_id", Type: TypeID, References: &Reference{Table: "stops", Field: "stop_id"}},
		{Name: "to_stop_id", Type: TypeID, References: &Reference{Table: "stops", Field: "stop_id"}},
		{Name: "transfer_type", Type: TypeEnum, Required: true},
		{Name: "min_transfer_time", Type: TypeOptionalInt},
	},
}

var fareAttributesTable = Table{
	Name:        "fare_attributes",
	Filename:    "fare_attributes.txt",
	KeyField:    "fare_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "fare_id", Type: TypeID, Required: true},
		{Name: "price", Type: TypeFloat, Required: true},
		{Name: "currency_type", Type: TypeCurrency, Required: true},
		{Name: "payment_method", Type: TypeEnum, Required: true},
		{Name: "transfers", Type: TypeOptionalInt},
		{Name: "agency_id", Type: TypeID, References: &Reference{Table: "agency", Field: "agency_id"}},
		{Name: "transfer_duration", Type: TypeOptionalInt},
	},
}

var fareRulesTable = Table{
	Name:        "fare_rules",
	Filename:    "fare_rules.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "fare_id", Type: TypeID, Required: true, References: &Reference{Table: "fare_attributes", Field: "fare_id"}},
		{Name: "route_id", Type: TypeID, References: &Reference{Table: "routes", Field: "route_id"}},
		{Name: "origin_id", Type: TypeID},
		{Name: "destination_id", Type: TypeID},
		{Name: "contains_id", Type: TypeID},
	},
}

var feedInfoTable = Table{
	Name:        "feed_info",
	Filename:    "feed_info.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "feed_publisher_name", Type: TypeText, Required: true},
		{Name: "feed_publisher_url", Type: TypeURL, Required: true},
		{Name: "feed_lang", Type: TypeLanguage, Required: true},
		{Name: "default_lang", Type: TypeLanguage},
		{Name: "feed_start_date", Type: TypeDate},
		{Name: "feed_end_date", Type: TypeDate},
		{Name: "feed_version", Type: TypeText},
		{Name: "feed_contact_email", Type: TypeEmail},
		{Name: "feed_contact_url", Type: TypeURL},
	},
}

var attributionsTable = Table{
	Name:        "attributions",
	Filename:    "attributions.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "attribution_id", Type: TypeID},
		{Name: "agency_id", Type: TypeID, References: &Reference{Table: "agency", Field: "agency_id"}},
		{Name: "route_id", Type: TypeID, References: &Reference{Table: "routes", Field: "route_id"}},
		{Name: "trip_id", Type: TypeID, References: &Reference{Table: "trips", Field: "trip_id"}},
		{Name: "organization_name", Type: TypeText, Required: true},
		{Name: "is_producer", Type: TypeEnum},
		{Name: "is_operator", Type: TypeEnum},
		{Name: "is_authority", Type: TypeEnum},
		{Name: "attribution_url", Type: TypeURL},
		{Name: "attribution_email", Type: TypeEmail},
		{Name: "attribution_phone", Type: TypePhone},
	},
}

var translationsTable = Table{
	Name:        "translations",
	Filename:    "translations.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "table_name", Type: TypeEnum, Required: true},
		{Name: "field_name", Type: TypeText, Required: true},
		{Name: "language", Type: TypeLanguage, Required: true},
		{Name: "translation", Type: TypeText, Required: true},
		{Name: "record_id", Type: TypeID},
		{Name: "record_sub_id", Type: TypeID},
		{Name: "field_value", Type: TypeText},
	},
}

var areasTable = Table{
	Name:        "areas",
	Filename:    "areas.txt",
	KeyField:    "area_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "area_id", Type: TypeID, Required: true},
		{Name: "area_name", Type: TypeText},
	},
}

var stopAreasTable = Table{
	Name:        "stop_areas",
	Filename:    "stop_areas.txt",
	Requirement: Optional,
	Fields: []Field{
		{Name: "area_id", Type: TypeID, Required: true, References: &Reference{Table: "areas", Field: "area_id"}},
		{Name: "stop_id", Type: TypeID, Required: true, References: &Reference{Table: "stops", Field: "stop_id"}},
	},
}

var pathwaysTable = Table{
	Name:        "pathways",
	Filename:    "pathways.txt",
	KeyField:    "pathway_id",
	Requirement: Optional,
	Fields: []Field{
		{Name: "pathway_id", Type: TypeID, Required: true},
		{Name: "from_stop_id", Type: TypeID, Required: true, References: &Reference{Table: "stops", Field: "stop_id"}},
		{Name: "to_stop_id", Type: TypeID, Required: true, References: &Reference{Table: "stops", Field: "stop_id"}},
		{Name: "pathway_mode", Type: TypeEnum, Required: true},
		{Name: "is_bidirectional", Type: TypeEnum, Required: true},
		{Name: "length", Type: TypeOptionalInt},
		{Name: "traversal_time", Type: TypeOptionalInt},
		{Name: "stair_count", Type: TypeOptionalInt},
		{Name: "max_slope", Type: TypeOptionalInt},
		{Name: "min_width", Type: TypeOptionalInt},
		{Name: "signposted_as", Type: TypeText},
		{Name: "reversed_signposted_as", Type: TypeText},
	},
}

// ByName finds a Table by its logical name ("stops", not "stops.txt").
func ByName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
