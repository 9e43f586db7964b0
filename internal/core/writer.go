package core

import (
	"bufio"
	"io"
	"strings"
)

// ExportFileName is the download name of the triage export.
const ExportFileName = "zaki_triage_export.csv"

// ExportColumns is the fixed column order of the triage export.
var ExportColumns = []string{
	"ID",
	"Item 1",
	"Item 2",
	"Distance",
	"AI Status",
	"AI Severity",
	"AI Responsibility",
	"AI Description",
}

// Field is one key/value pair of a Record.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered set of fields.
type Record []Field

// Get returns the value stored under key, or "" when absent.
func (r Record) Get(key string) string {
	for _, f := range r {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Keys returns the record's keys in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// WriteRecords serializes records as delimited text.
//
// The header row is the first record's keys joined by commas. Every data
// value is double-quoted with embedded quotes doubled; keys missing from a
// record serialize as "". Rows are separated by "\n" with no trailing
// newline. An empty slice writes nothing.
func WriteRecords(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	keys := records[0].Keys()
	bw.WriteString(strings.Join(keys, ","))

	for _, rec := range records {
		bw.WriteByte('\n')
		for i, key := range keys {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quoteField(rec.Get(key)))
		}
	}
	return bw.Flush()
}

func quoteField(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// ExportRecords flattens clashes into export records in ExportColumns order.
func ExportRecords(clashes []EnrichedClash) []Record {
	records := make([]Record, len(clashes))
	for i, c := range clashes {
		records[i] = Record{
			{"ID", c.ID},
			{"Item 1", c.Item1},
			{"Item 2", c.Item2},
			{"Distance", c.Distance},
			{"AI Status", string(c.Status)},
			{"AI Severity", string(c.AISeverity)},
			{"AI Responsibility", string(c.AIResponsibility)},
			{"AI Description", c.AIDescription},
		}
	}
	return records
}

// WriteExport writes the triage export for clashes.
func WriteExport(w io.Writer, clashes []EnrichedClash) error {
	return WriteRecords(w, ExportRecords(clashes))
}
