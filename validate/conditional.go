package validate

import (
	"database/sql"
	"fmt"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/storage"
)

// conditionalRule is a small declarative description of "field X is
// required when field Y has/doesn't have some value", expressed as
// data instead of a parsed DSL — grounded on the theoremus pack's
// declarative notice-generation style (conditions expressed as
// structs evaluated against loaded data, rather than free-form Go
// code per check).
type conditionalRule struct {
	Table           string
	ReferenceField  string
	DependentField  string
	// RequiredUnless lists ReferenceField values that exempt the row
	// from needing DependentField. An empty slice means
	// DependentField is always required when this rule applies.
	RequiredUnless []string
	Kind           errs.Kind
	Describe       func(refValue string) string
}

var conditionalRules = []conditionalRule{
	{
		Table:          "stops",
		ReferenceField: "location_type",
		DependentField: "stop_lat",
		RequiredUnless: []string{"3", "4"},
		Kind:           errs.KindConditionallyRequired,
		Describe: func(ref string) string {
			return fmt.Sprintf("stop_lat is required unless location_type is 3 (generic node) or 4 (boarding area), got %q", ref)
		},
	},
	{
		Table:          "stops",
		ReferenceField: "location_type",
		DependentField: "stop_lon",
		RequiredUnless: []string{"3", "4"},
		Kind:           errs.KindConditionallyRequired,
		Describe: func(ref string) string {
			return fmt.Sprintf("stop_lon is required unless location_type is 3 (generic node) or 4 (boarding area), got %q", ref)
		},
	},
	{
		Table:          "booking_rules",
		ReferenceField: "booking_type",
		DependentField: "prior_notice_last_day",
		RequiredUnless: []string{"0", "1"},
		Kind:           errs.KindConditionallyRequired,
		Describe: func(ref string) string {
			return "prior_notice_last_day is required when booking_type is 2 (prior days notice)"
		},
	},
}

// requiredIfMultipleRows is the HAS_MULTIPLE_ROWS case of spec.md
// §4.7's conditional-requirements DSL: Field becomes required on every
// row of Table once Table has more than one row, e.g. agency_id is
// only required in agency.txt when more than one agency is declared.
type requiredIfMultipleRows struct {
	Table    string
	KeyField string
	Field    string
	Kind     errs.Kind
	Describe func() string
}

var multiRowRules = []requiredIfMultipleRows{
	{
		Table:    "agency",
		KeyField: "agency_id",
		Field:    "agency_id",
		Kind:     errs.KindConditionallyRequired,
		Describe: func() string {
			return "agency_id is required on every row once agency.txt declares more than one agency"
		},
	},
}

func checkConditionalRequirements(backend storage.Backend, namespace string, store *errs.Store) error {
	for _, rule := range conditionalRules {
		if err := applyConditionalRule(backend, namespace, rule, store); err != nil {
			return err
		}
	}
	for _, rule := range multiRowRules {
		if err := applyMultiRowRule(backend, namespace, rule, store); err != nil {
			return err
		}
	}
	if err := checkZoneIDRequiredByFareRules(backend, namespace, store); err != nil {
		return err
	}
	return nil
}

func applyConditionalRule(backend storage.Backend, namespace string, rule conditionalRule, store *errs.Store) error {
	keyField, _ := primaryKeyField(rule.Table)
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s", keyField, rule.ReferenceField, rule.DependentField, storage.TableName(namespace, rule.Table))
	rows, err := backend.Query(query)
	if err != nil {
		// The table may not have been loaded at all (optional
		// table); nothing to check.
		return nil
	}
	defer rows.Close()

	exempt := map[string]bool{}
	for _, v := range rule.RequiredUnless {
		exempt[v] = true
	}

	for rows.Next() {
		var entityID string
		var refValue, depValue sql.NullString
		if err := rows.Scan(&entityID, &refValue, &depValue); err != nil {
			return err
		}
		if exempt[refValue.String] {
			continue
		}
		if !depValue.Valid || depValue.String == "" {
			store.Add(rule.Kind, rule.Table, entityID, 0, "%s", rule.Describe(refValue.String))
		}
	}
	return rows.Err()
}

func applyMultiRowRule(backend storage.Backend, namespace string, rule requiredIfMultipleRows, store *errs.Store) error {
	query := fmt.Sprintf("SELECT %s, %s FROM %s", rule.KeyField, rule.Field, storage.TableName(namespace, rule.Table))
	rows, err := backend.Query(query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	type entry struct {
		id  sql.NullString
		val sql.NullString
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.val); err != nil {
			return err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(entries) <= 1 {
		return nil
	}
	for _, e := range entries {
		if !e.val.Valid || e.val.String == "" {
			store.Add(rule.Kind, rule.Table, e.id.String, 0, "%s", rule.Describe())
		}
	}
	return nil
}

// checkZoneIDRequiredByFareRules implements spec.md §4.7's
// FOREIGN_REF_EXISTS case: every zone_id referenced by fare_rules'
// origin_id/destination_id/contains_id must exist among stops.zone_id
// values, even though stops.zone_id is otherwise never required.
func checkZoneIDRequiredByFareRules(backend storage.Backend, namespace string, store *errs.Store) error {
	referenced, err := loadReferencedZoneIDs(backend, namespace)
	if err != nil {
		return err
	}
	if len(referenced) == 0 {
		return nil
	}

	declared, err := loadStopZoneIDs(backend, namespace)
	if err != nil {
		return err
	}

	for _, zone := range referenced {
		if !declared[zone] {
			store.Add(errs.KindConditionallyRequired, "stops", zone, 0,
				"zone_id %s is required by fare_rules within stops.", zone)
		}
	}
	return nil
}

func loadReferencedZoneIDs(backend storage.Backend, namespace string) ([]string, error) {
	rows, err := backend.Query(fmt.Sprintf("SELECT origin_id, destination_id, contains_id FROM %s",
		storage.TableName(namespace, "fare_rules")))
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	seen := map[string]bool{}
	var order []string
	for rows.Next() {
		var origin, dest, contains sql.NullString
		if err := rows.Scan(&origin, &dest, &contains); err != nil {
			return nil, err
		}
		for _, v := range []sql.NullString{origin, dest, contains} {
			if v.Valid && v.String != "" && !seen[v.String] {
				seen[v.String] = true
				order = append(order, v.String)
			}
		}
	}
	return order, rows.Err()
}

func loadStopZoneIDs(backend storage.Backend, namespace string) (map[string]bool, error) {
	rows, err := backend.Query(fmt.Sprintf("SELECT zone_id FROM %s", storage.TableName(namespace, "stops")))
	if err != nil {
		return map[string]bool{}, nil
	}
	defer rows.Close()

	set := map[string]bool{}
	for rows.Next() {
		var zone sql.NullString
		if err := rows.Scan(&zone); err != nil {
			return nil, err
		}
		if zone.Valid && zone.String != "" {
			set[zone.String] = true
		}
	}
	return set, rows.Err()
}

func primaryKeyField(table string) (string, bool) {
	switch table {
	case "stops":
		return "stop_id", true
	case "booking_rules":
		return "booking_rule_id", true
	case "fare_rules":
		return "fare_id", true
	default:
		return "rowid", false
	}
}
