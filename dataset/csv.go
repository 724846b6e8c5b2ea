// Package dataset loads validated records from delimited files and SQLite
// tables, and splits record sets deterministically.
package dataset

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

// CSVOptions controls delimited-text parsing.
type CSVOptions struct {
	// Separator defaults to ','.
	Separator rune
	// HasHeader skips the first line. Columns are always bound by index.
	HasHeader bool
	// AllowQuoting tolerates bare quotes inside unquoted fields.
	AllowQuoting bool
}

// DefaultCSVOptions matches the common comma-separated file with a header.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Separator: ',', HasHeader: true, AllowQuoting: true}
}

// ReadCSV parses every data row of r against s. Row indices in errors are
// zero-based and exclude the header. The first invalid row aborts the read.
func ReadCSV(r io.Reader, s *schema.Schema, opts CSVOptions) ([]schema.Record, error) {
	cr := csv.NewReader(r)
	if opts.Separator != 0 {
		cr.Comma = opts.Separator
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opts.AllowQuoting
	cr.ReuseRecord = true

	if opts.HasHeader {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, errors.Wrap(err, "read header")
		}
	}

	var records []schema.Record
	for row := 0; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", row)
		}
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		rec, err := s.Validate(fields, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, s *schema.Schema, opts CSVOptions) ([]schema.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadCSV(f, s, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	log.GetLoggerWithName("dataset").Debug("Loaded records",
		"path", path,
		log.SamplesKey, len(records),
	)
	return records, nil
}
