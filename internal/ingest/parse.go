package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodingSampleSize is how many bytes are fed to charset detection.
const encodingSampleSize = 10 * 1024

const bom = "\ufeff"

// ParseCSV decodes, cleans and parses one export file.
//
// The upstream system produces files with assorted artifacts: uncertain
// encodings, non-tabular preamble lines, decorative dash separator rows,
// trailing record-count footers, tab alignment and BOM-prefixed headers.
// ParseCSV strips all of them and yields the surviving data rows. Every
// field is kept as raw text; blank cells become nil. Malformed lines are
// skipped rather than aborting the parse.
//
// The returned error is local to the file: the orchestrator converts it
// into a per-file error outcome.
func ParseCSV(data []byte, sep rune, fallbackEncoding string) ([]RawRow, error) {
	text := decodeBytes(data, fallbackEncoding)

	// Tabs show up as alignment artifacts; normalize them before any
	// separator-based decisions.
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines, headerDropped, err := cleanLines(strings.Split(text, "\n"), sep)
	if err != nil {
		return nil, err
	}

	return parseRows(lines, sep, headerDropped)
}

// decodeBytes converts raw file bytes to UTF-8 text. The charset is detected
// by statistical analysis of the first 10 KB; the configured fallback is used
// when detection is inconclusive. Undecodable bytes are replaced, never
// fatal.
func decodeBytes(data []byte, fallback string) string {
	sample := data
	if len(sample) > encodingSampleSize {
		sample = sample[:encodingSampleSize]
	}

	enc := detectEncoding(sample, fallback)
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		// Last resort: interpret the bytes as UTF-8 with replacement.
		decoded, _, _ = transform.Bytes(unicode.UTF8.NewDecoder(), data)
	}
	return string(decoded)
}

func detectEncoding(sample []byte, fallback string) encoding.Encoding {
	if res, err := chardet.NewTextDetector().DetectBest(sample); err == nil {
		if enc, err := htmlindex.Get(res.Charset); err == nil {
			return enc
		}
	}
	if enc, err := htmlindex.Get(fallback); err == nil {
		return enc
	}
	return unicode.UTF8
}

// cleanLines strips non-tabular noise: leading blank lines, a one-line
// preamble without the separator, decorative dash rows and a trailing
// record-count footer. It returns the surviving lines plus the number of
// dropped leading lines, needed for origin line-number accounting.
func cleanLines(lines []string, sep rune) ([]string, int, error) {
	// Splitting on "\n" leaves an empty tail element when the file ends
	// with a newline.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	headerDropped := 0
	if len(lines) > 0 && !strings.ContainsRune(lines[0], sep) {
		lines = lines[1:]
		headerDropped++
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
		headerDropped++
	}

	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if isDecorationLine(ln, sep) {
			continue
		}
		kept = append(kept, ln)
	}
	lines = kept

	// Trailing record-count footer: no separator, or digits only.
	if len(lines) > 0 {
		tail := strings.TrimSpace(lines[len(lines)-1])
		if !strings.ContainsRune(tail, sep) || isAllDigits(tail) {
			lines = lines[:len(lines)-1]
		}
	}

	if len(lines) == 0 {
		return nil, 0, errors.New("file contains no data after cleaning")
	}
	return lines, headerDropped, nil
}

// isDecorationLine reports whether the line is a decorative separator row:
// after removing the field separator and whitespace, only '-' remains.
func isDecorationLine(line string, sep rune) bool {
	cleaned := strings.ReplaceAll(strings.TrimSpace(line), string(sep), "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return false
	}
	return strings.Count(cleaned, "-") == len(cleaned)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseRows parses the cleaned block as delimited text. The first record is
// the header (trimmed, BOM-stripped); each following record becomes a RawRow
// with its origin line number.
func parseRows(lines []string, sep rune, headerDropped int) ([]RawRow, error) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.New("file has no header row")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(h), bom))
	}

	var rows []RawRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; skip it, keep the rest of the file.
			continue
		}

		values := make(map[string]*string, len(columns))
		for i, col := range columns {
			if i < len(rec) && rec[i] != "" {
				v := rec[i]
				values[col] = &v
			} else {
				// Blank or missing trailing cell.
				values[col] = nil
			}
		}

		rows = append(rows, RawRow{
			// +1 for the header line, +1 to convert the 0-based index.
			Line:    headerDropped + len(rows) + 2,
			Columns: columns,
			Values:  values,
		})
	}

	return rows, nil
}
