// Package errs accumulates the notices produced while loading,
// checking referential integrity, building patterns, expanding
// calendars and validating a feed. Every stage writes into the same
// Store so the final report carries one consistent ordering.
package errs

import "fmt"

// Severity classifies how serious a Record is. It never depends on
// the data being checked, only on the Kind.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Kind identifies one specific notice. Kinds are grouped below by the
// pipeline stage that raises them.
type Kind string

// Format / structural notices, raised while reading the archive.
const (
	KindUnknownFileFormat      Kind = "unknown_file_format"
	KindTableInSubdirectory    Kind = "table_in_subdirectory"
	KindMissingTable           Kind = "missing_table"
	KindEmptyTable             Kind = "empty_table"
	KindCSVParsingFailed       Kind = "csv_parsing_failed"
	KindIllegalFieldValue      Kind = "illegal_field_value"
	KindWrongNumberOfFields    Kind = "wrong_number_of_fields"
	KindTableTooLong           Kind = "table_too_long"
	KindNewLineInValue         Kind = "new_line_in_value"
	KindMissingColumn          Kind = "missing_column"
	KindDuplicateHeader        Kind = "duplicate_header"
	KindColumnNameUnsafe       Kind = "column_name_unsafe"
	KindUnrecognizedColumn     Kind = "unrecognized_column"
	KindLeadingOrTrailingWhite Kind = "leading_or_trailing_whitespace"
)

// Field-level structure notices, raised while coercing a row.
const (
	KindMissingRequiredField Kind = "missing_required_field"
	KindInvalidFieldFormat   Kind = "invalid_field_format"
	KindInvalidColor         Kind = "invalid_color"
	KindInvalidCurrency      Kind = "invalid_currency"
	KindInvalidLanguageCode  Kind = "invalid_language_code"
	KindInvalidURL           Kind = "invalid_url"
	KindInvalidTimezone      Kind = "invalid_timezone"
	KindInvalidEmail         Kind = "invalid_email"
	KindInvalidPhoneNumber   Kind = "invalid_phone_number"
	KindOutOfRange           Kind = "out_of_range"
	KindInvalidTimeFormat    Kind = "invalid_time_format"
	KindInvalidDateFormat    Kind = "invalid_date_format"
	KindDuplicateKey         Kind = "duplicate_key"
	KindForeignKeyViolation  Kind = "missing_foreign_table_reference"
)

// Referential integrity notices.
const (
	KindReferentialIntegrity Kind = "referential_integrity"
	KindOrphanedEntity       Kind = "orphaned_entity"
	KindConditionallyRequired Kind = "conditionally_required"
)

// Semantic / business-rule notices.
const (
	KindDecreasingStopTime        Kind = "decreasing_or_equal_stop_time"
	KindFastTravelBetweenStops    Kind = "fast_travel_between_stops"
	KindSlowTravelBetweenStops    Kind = "travel_too_slow"
	KindTripSpeedNotValidated     Kind = "trip_speed_not_validated"
	KindStopTooFarFromShape       Kind = "stop_too_far_from_shape"
	KindDuplicateStop             Kind = "duplicate_stop"
	KindOverlappingTripsInBlock   Kind = "overlapping_trips_in_block"
	KindOverlappingFrequency      Kind = "overlapping_frequency"
	KindSameNameAndDescForRoute   Kind = "same_name_and_description_for_route"
	KindRouteShortNameTooLong     Kind = "route_short_name_too_long"
	KindRouteLongNameContainsSN   Kind = "route_long_name_contains_short_name"
	KindStartAndEndRangeOutOfOrder Kind = "start_and_end_range_out_of_order"
	KindStopTimeTimepointWithoutTime Kind = "stop_time_timepoint_without_times"
)

// Calendar / service notices.
const (
	KindServiceNeverActive Kind = "service_never_active"
	KindTripNeverActive    Kind = "trip_never_active"
	KindServiceUnused      Kind = "service_without_trips"
	KindDateNoService      Kind = "date_with_no_service"
)

// GTFS-Flex notices.
const (
	KindFlexMissingBookingRule   Kind = "flex_missing_booking_rule"
	KindFlexInconsistentHalt     Kind = "flex_inconsistent_halt"
	KindFlexZeroDurationWindow   Kind = "flex_zero_duration_window"
	KindFlexLocationGeometryBad  Kind = "flex_location_geometry_invalid"
)

// Pattern / engine notices.
const (
	KindPatternUnnamed          Kind = "pattern_unnamed"
	KindEngineInternal          Kind = "engine_internal_error"
	KindValidatorFailed         Kind = "validator_failed"
	KindOther                   Kind = "other"
)

// severities maps every Kind to a fixed Severity. A Kind with no
// entry here falls back to SeverityMedium (see Kind.Severity).
var severities = map[Kind]Severity{
	KindUnknownFileFormat:      SeverityLow,
	KindTableInSubdirectory:    SeverityHigh,
	KindMissingTable:           SeverityHigh,
	KindEmptyTable:             SeverityMedium,
	KindCSVParsingFailed:       SeverityHigh,
	KindIllegalFieldValue:      SeverityMedium,
	KindWrongNumberOfFields:    SeverityHigh,
	KindTableTooLong:           SeverityHigh,
	KindNewLineInValue:         SeverityMedium,
	KindMissingColumn:          SeverityHigh,
	KindDuplicateHeader:        SeverityHigh,
	KindColumnNameUnsafe:       SeverityHigh,
	KindUnrecognizedColumn:     SeverityLow,
	KindLeadingOrTrailingWhite: SeverityLow,

	KindMissingRequiredField: SeverityHigh,
	KindInvalidFieldFormat:   SeverityMedium,
	KindInvalidColor:         SeverityLow,
	KindInvalidCurrency:      SeverityMedium,
	KindInvalidLanguageCode:  SeverityLow,
	KindInvalidURL:           SeverityLow,
	KindInvalidTimezone:      SeverityHigh,
	KindInvalidEmail:         SeverityLow,
	KindInvalidPhoneNumber:   SeverityLow,
	KindOutOfRange:           SeverityMedium,
	KindInvalidTimeFormat:    SeverityMedium,
	KindInvalidDateFormat:    SeverityMedium,
	KindDuplicateKey:         SeverityHigh,
	KindForeignKeyViolation:  SeverityHigh,

	KindReferentialIntegrity:  SeverityHigh,
	KindOrphanedEntity:        SeverityMedium,
	KindConditionallyRequired: SeverityHigh,

	KindDecreasingStopTime:           SeverityHigh,
	KindFastTravelBetweenStops:       SeverityMedium,
	KindSlowTravelBetweenStops:       SeverityMedium,
	KindTripSpeedNotValidated:        SeverityLow,
	KindStopTooFarFromShape:          SeverityMedium,
	KindDuplicateStop:                SeverityLow,
	KindOverlappingTripsInBlock:      SeverityMedium,
	KindOverlappingFrequency:         SeverityMedium,
	KindSameNameAndDescForRoute:      SeverityLow,
	KindRouteShortNameTooLong:        SeverityLow,
	KindRouteLongNameContainsSN:      SeverityLow,
	KindStartAndEndRangeOutOfOrder:   SeverityMedium,
	KindStopTimeTimepointWithoutTime: SeverityMedium,

	KindServiceNeverActive: SeverityMedium,
	KindTripNeverActive:    SeverityMedium,
	KindServiceUnused:      SeverityLow,
	KindDateNoService:      SeverityLow,

	KindFlexMissingBookingRule:  SeverityMedium,
	KindFlexInconsistentHalt:    SeverityMedium,
	KindFlexZeroDurationWindow:  SeverityLow,
	KindFlexLocationGeometryBad: SeverityHigh,

	KindPatternUnnamed:  SeverityLow,
	KindEngineInternal:  SeverityHigh,
	KindValidatorFailed: SeverityHigh,
	KindOther:           SeverityMedium,
}

// Severity returns the fixed severity for k, defaulting to
// SeverityMedium for an unregistered Kind rather than panicking, so a
// future Kind added without an entry here degrades gracefully.
func (k Kind) Severity() Severity {
	if s, ok := severities[k]; ok {
		return s
	}
	return SeverityMedium
}

// Record is one notice: a Kind tied to the entity and, where
// applicable, the source line that triggered it.
type Record struct {
	Kind       Kind
	Severity   Severity
	EntityType string
	EntityID   string
	Line       int
	Field      string
	Message    string
}

func (r Record) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s[%s]: %s %s (line %d): %s", r.Severity, r.Kind, r.EntityType, r.EntityID, r.Line, r.Message)
	}
	return fmt.Sprintf("%s[%s]: %s %s: %s", r.Severity, r.Kind, r.EntityType, r.EntityID, r.Message)
}

type dedupKey struct {
	kind       Kind
	entityType string
	entityID   string
	line       int
}

// Store accumulates Records in insertion order, silently dropping
// exact duplicates (same kind, entity and line) so a loop that
// revisits a row during multiple passes doesn't inflate the count.
type Store struct {
	records []Record
	seen    map[dedupKey]bool
}

func NewStore() *Store {
	return &Store{seen: map[dedupKey]bool{}}
}

// Add registers a Record built from k and the given entity
// description, filling in Severity from k.
func (s *Store) Add(k Kind, entityType, entityID string, line int, format string, args ...interface{}) {
	s.AddRecord(Record{
		Kind:       k,
		Severity:   k.Severity(),
		EntityType: entityType,
		EntityID:   entityID,
		Line:       line,
		Message:    fmt.Sprintf(format, args...),
	})
}

// AddRecord registers r as-is, computing Severity from r.Kind if it
// was left zero-valued.
func (s *Store) AddRecord(r Record) {
	if r.Severity == 0 && r.Kind.Severity() != SeverityLow {
		r.Severity = r.Kind.Severity()
	}
	key := dedupKey{r.Kind, r.EntityType, r.EntityID, r.Line}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.records = append(s.records, r)
}

// Records returns all accumulated records, in insertion order.
func (s *Store) Records() []Record {
	return s.records
}

// CountBySeverity tallies records per severity level.
func (s *Store) CountBySeverity() map[Severity]int {
	counts := map[Severity]int{}
	for _, r := range s.records {
		counts[r.Severity]++
	}
	return counts
}

// HasSeverity reports whether any record at or above the given
// severity was recorded.
func (s *Store) HasSeverity(min Severity) bool {
	for _, r := range s.records {
		if r.Severity >= min {
			return true
		}
	}
	return false
}

// Len returns the number of accumulated records.
func (s *Store) Len() int {
	return len(s.records)
}

// Merge appends another Store's records into s, preserving
// deduplication.
func (s *Store) Merge(other *Store) {
	for _, r := range other.Records() {
		s.AddRecord(r)
	}
}
