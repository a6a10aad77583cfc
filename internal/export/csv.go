// Package export writes a labelled dataset to its sinks: CSV files, a SQLite
// database, an HTML chart and a terminal summary.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
)

// ExtLZ4 marks an lz4-framed file.
const ExtLZ4 = ".lz4"

const (
	labelBuggy = "Yes"
	labelClean = "No"
)

// CSVHeader is the column layout of the dataset file.
var CSVHeader = []string{
	"Version Number", "Filename",
	"LOC_Touched", "Number_Revisions", "NumberBugFix",
	"LOC_Added", "MAX_LOC_Added", "ChgSetSize", "Max_ChgSet",
	"AVG_ChgSet", "Avg_LOC_Added", "Buggy",
}

var (
	// ErrBadHeader is returned when a dataset file does not start with CSVHeader.
	ErrBadHeader = errors.New("unexpected dataset header")
	// ErrBadLabel is returned for a Buggy column that is neither Yes nor No.
	ErrBadLabel = errors.New("unexpected buggy label")
)

// WriteCSV writes rows in order under CSVHeader.
func WriteCSV(w io.Writer, rows []dataset.Row) error {
	cw := csv.NewWriter(w)

	err := cw.Write(CSVHeader)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(CSVHeader))

	for _, row := range rows {
		record[0] = strconv.Itoa(row.Release)
		record[1] = row.Path

		for slot := range dataset.Buggy {
			record[2+slot] = strconv.Itoa(row.Metrics[slot])
		}

		record[len(record)-1] = labelClean
		if row.Metrics.IsBuggy() {
			record[len(record)-1] = labelBuggy
		}

		err = cw.Write(record)
		if err != nil {
			return fmt.Errorf("write row %d %s: %w", row.Release, row.Path, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]dataset.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if strings.Join(header, ",") != strings.Join(CSVHeader, ",") {
		return nil, ErrBadHeader
	}

	var rows []dataset.Row

	for line := 2; ; line++ {
		record, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return rows, nil
		}

		if readErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, readErr)
		}

		row, parseErr := parseRow(record)
		if parseErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, parseErr)
		}

		rows = append(rows, row)
	}
}

func parseRow(record []string) (dataset.Row, error) {
	var row dataset.Row

	rel, err := strconv.Atoi(record[0])
	if err != nil {
		return row, fmt.Errorf("release: %w", err)
	}

	row.Release = rel
	row.Path = record[1]

	for slot := range dataset.Buggy {
		v, convErr := strconv.Atoi(record[2+slot])
		if convErr != nil {
			return row, fmt.Errorf("%s: %w", CSVHeader[2+slot], convErr)
		}

		row.Metrics[slot] = v
	}

	switch record[len(record)-1] {
	case labelBuggy:
		row.Metrics.MarkBuggy()
	case labelClean:
	default:
		return row, fmt.Errorf("%w: %q", ErrBadLabel, record[len(record)-1])
	}

	return row, nil
}

// SaveCSV writes rows to path, framing the file with lz4 when compress is set
// or the path ends in ExtLZ4.
func SaveCSV(path string, rows []dataset.Row, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close dataset: %w", closeErr)
		}
	}()

	if !compress && !strings.HasSuffix(path, ExtLZ4) {
		return WriteCSV(f, rows)
	}

	zw := lz4.NewWriter(f)

	err = WriteCSV(zw, rows)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush lz4 stream: %w", err)
	}

	return nil
}

// LoadCSV reads a dataset file, decompressing paths ending in ExtLZ4.
func LoadCSV(path string) ([]dataset.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ExtLZ4) {
		r = lz4.NewReader(f)
	}

	return ReadCSV(r)
}
