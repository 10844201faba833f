// Package export implements C10: writing a namespace's tables back
// out as a GTFS zip archive, mirroring the teacher's read path
// (storage.FeedReader) run in reverse — one CSV member per schema
// table, in schema order, rows ordered by the table's key field where
// it has one. Values are written as stored: the loader already keeps
// dates as YYYYMMDD and times as zero-padded HH:MM:SS, so no column is
// re-formatted here.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"

	"tidbyt.dev/gtfsdb/schema"
	"tidbyt.dev/gtfsdb/storage"
)

// Export streams every table present for namespace into a zip archive
// and returns its bytes.
func Export(backend storage.Backend, namespace string) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, t := range schema.Tables {
		// locations.geojson is not a CSV member; exportLocations
		// writes it below.
		if t.Name == "locations" {
			continue
		}
		wrote, err := exportTable(zw, backend, namespace, t)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", t.Name, err)
		}
		_ = wrote
	}

	if err := exportLocations(zw, backend, namespace); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return buf.Bytes(), nil
}

func exportTable(zw *zip.Writer, backend storage.Backend, namespace string, t schema.Table) (bool, error) {
	cols := t.FieldNames()
	query := fmt.Sprintf("SELECT %s FROM %s", joinColumns(cols), storage.TableName(namespace, t.Name))
	if t.KeyField != "" {
		query += " ORDER BY " + t.KeyField
	}
	rows, err := backend.Query(query)
	if err != nil {
		// Table wasn't loaded for this namespace (optional table
		// absent from the source archive); nothing to export.
		return false, nil
	}
	defer rows.Close()

	scanDest := make([]interface{}, len(cols))
	scanBuf := make([]interface{}, len(cols))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}

	var records [][]string
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return false, err
		}
		record := make([]string, len(cols))
		for i, v := range scanBuf {
			record[i] = formatValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	w, err := zw.Create(t.Filename)
	if err != nil {
		return false, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return false, err
	}
	if err := cw.WriteAll(records); err != nil {
		return false, err
	}
	cw.Flush()
	return true, cw.Error()
}

func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// exportLocations writes locations.geojson back out from the raw
// GeoJSON blobs the loader kept opaque in load/geojson.go.
func exportLocations(zw *zip.Writer, backend storage.Backend, namespace string) error {
	rows, err := backend.Query(fmt.Sprintf("SELECT geojson FROM %s", storage.TableName(namespace, "locations")))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var features []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return err
		}
		features = append(features, g)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(features) == 0 {
		return nil
	}

	w, err := zw.Create("locations.geojson")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, `{"type":"FeatureCollection","features":[`); err != nil {
		return err
	}
	for i, f := range features {
		if i > 0 {
			if _, err := fmt.Fprint(w, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, f); err != nil {
			return err
		}
	}
	_, err = fmt.Fprint(w, "]}")
	return err
}
