// Package refcheck implements C6: checking every foreign key named in
// the schema registry against the set of keys actually loaded,
// flagging rows whose reference doesn't resolve. Single and union
// (one-of-several-tables) references are both supported, grounded on
// spec.md §9's design note that a union reference is never collapsed
// into a single id space.
package refcheck

import (
	"database/sql"
	"fmt"
	"strings"

	"tidbyt.dev/gtfsdb/errs"
	"tidbyt.dev/gtfsdb/schema"
	"tidbyt.dev/gtfsdb/storage"
)

// Check runs every registered reference against the namespace's
// loaded tables, appending a REFERENTIAL_INTEGRITY record for each row
// whose single-table reference value isn't found, or
// MISSING_FOREIGN_TABLE_REFERENCE when the field is a union reference
// (stop_times.stop_id and friends) and the value resolves to none of
// the candidate tables.
func Check(backend storage.Backend, namespace string, store *errs.Store) error {
	keysCache := map[string]map[string]bool{}

	keysFor := func(table, field string) (map[string]bool, error) {
		cacheKey := table + "." + field
		if set, ok := keysCache[cacheKey]; ok {
			return set, nil
		}
		set, err := loadKeySet(backend, namespace, table, field)
		if err != nil {
			return nil, err
		}
		keysCache[cacheKey] = set
		return set, nil
	}

	for _, t := range schema.Tables {
		for _, f := range t.Fields {
			if f.References == nil && f.Union == nil {
				continue
			}
			if err := checkField(backend, namespace, t, f, keysFor, store); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkField(
	backend storage.Backend,
	namespace string,
	t schema.Table,
	f schema.Field,
	keysFor func(table, field string) (map[string]bool, error),
	store *errs.Store,
) error {
	tableName := storage.TableName(namespace, t.Name)
	rows, err := backend.Query(fmt.Sprintf("SELECT %s, line_number FROM %s", f.Name, tableName))
	if err != nil {
		// Tables without a line_number column (everything but
		// stop_times) fall back to a rowid-free query.
		rows, err = backend.Query(fmt.Sprintf("SELECT %s FROM %s", f.Name, tableName))
		if err != nil {
			// The referring table was not loaded for this
			// namespace; nothing to check.
			return nil
		}
	}
	defer rows.Close()

	var targets []schema.Reference
	if f.Union != nil {
		targets = f.Union.Targets
	} else {
		targets = []schema.Reference{*f.References}
	}

	sets := make([]map[string]bool, len(targets))
	for i, ref := range targets {
		set, err := keysFor(ref.Table, ref.Field)
		if err != nil {
			return err
		}
		sets[i] = set
	}

	// The key sets above are loaded before the referring rows are
	// opened, so no other query runs while those rows are being read.
	tableName := storage.TableName(namespace, t.Name)
	rows, err := backend.Query(fmt.Sprintf("SELECT %s, line_number FROM %s", f.Name, tableName))
	if err != nil {
		// Tables without a line_number column (everything but
		// stop_times) fall back to a rowid-free query.
		rows, err = backend.Query(fmt.Sprintf("SELECT %s FROM %s", f.Name, tableName))
		if err != nil {
			// The referring table was not loaded for this
			// namespace; nothing to check.
			return nil
		}
	}
	defer rows.Close()

	cols, _ := rows.Columns()
	hasLine := len(cols) == 2

	for rows.Next() {
		var value sql.NullString
		var line int
		var scanErr error
		if hasLine {
			scanErr = rows.Scan(&value, &line)
		} else {
			scanErr = rows.Scan(&value)
		}
		if scanErr != nil {
			return scanErr
		}
		if !value.Valid || value.String == "" {
			continue
		}

		resolved := false
		for _, set := range sets {
			if set[value.String] {
				resolved = true
				break
			}
		}
		if !resolved {
			if f.Union != nil {
				store.Add(errs.KindForeignKeyViolation, t.Name, value.String, line,
					"%s.%s %q does not reference any row in %s", t.Name, f.Name, value.String, targetTableNames(targets))
			} else {
				store.Add(errs.KindReferentialIntegrity, t.Name, value.String, line,
					"%s.%s %q does not reference any existing row", t.Name, f.Name, value.String)
			}
		}
	}
	return rows.Err()
}

func targetTableNames(targets []schema.Reference) string {
	names := make([]string, len(targets))
	for i, ref := range targets {
		names[i] = ref.Table
	}
	return strings.Join(names, " or ")
}

func loadKeySet(backend storage.Backend, namespace, table, field string) (map[string]bool, error) {
	tableName := storage.TableName(namespace, table)
	rows, err := backend.Query(fmt.Sprintf("SELECT %s FROM %s", field, tableName))
	if err != nil {
		// The referenced table may legitimately be absent (e.g. no
		// locations.geojson in a feed with no flex tables); an empty set
		// makes every reference to it fail, which is correct.
		return map[string]bool{}, nil
	}
	defer rows.Close()

	set := map[string]bool{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid && v.String != "" {
			set[v.String] = true
		}
	}
	return set, rows.Err()
}
