package dataset

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/schema"
)

// ReadSQLite runs query against the SQLite database at path and validates
// each result row against s. Result columns are matched to schema fields by
// name, case-insensitively; NULL is read as an empty value.
func ReadSQLite(ctx context.Context, path, query string, s *schema.Schema) ([]schema.Record, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "columns")
	}
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[strings.ToLower(c)] = i
	}

	// binding[field column] = result column, -1 when absent.
	binding := make([]int, s.Width())
	for i := range binding {
		binding[i] = -1
	}
	for _, f := range s.Fields() {
		idx, ok := byName[strings.ToLower(f.Name)]
		if !ok {
			if f.Role == schema.RoleIgnore {
				continue
			}
			return nil, errors.NewSchemaError(f.Name, f.Column, -1, "", "column missing from query result")
		}
		binding[f.Column] = idx
	}

	scan := make([]sql.NullString, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range scan {
		dest[i] = &scan[i]
	}

	var records []schema.Record
	raw := make([]string, s.Width())
	for row := 0; rows.Next(); row++ {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "scan row %d", row)
		}
		for col, idx := range binding {
			raw[col] = ""
			if idx >= 0 && scan[idx].Valid {
				raw[col] = scan[idx].String
			}
		}
		rec, err := s.Validate(raw, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return records, nil
}
