// Package dataset loads tabular files into entity.Dataset values.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"data-agent/internal/domain/entity"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Load reads a .csv, .xlsx, .xlsm or .xls file. The first row is the header;
// spreadsheets use their first sheet.
func Load(path string) (*entity.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	name := filepath.Base(path)
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		rows, err = readCSV(f)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(path)
	case ".xls":
		rows, err = readXLS(path)
	default:
		return nil, fmt.Errorf("%w: %s (use CSV or Excel)", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return fromRows(name, rows)
}

// LoadCSV parses CSV content from r, for uploads that never touch disk.
func LoadCSV(name string, r io.Reader) (*entity.Dataset, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return fromRows(name, rows)
}

func fromRows(name string, rows [][]string) (*entity.Dataset, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	return entity.NewDataset(name, rows[0], rows[1:])
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4096)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(head)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// sniffDelimiter picks the most frequent candidate delimiter on the first
// line, defaulting to a comma.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', bytes.Count(head, []byte{','})
	for _, d := range []rune{';', '\t', '|'} {
		if n := bytes.Count(head, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in excel file")
	}
	return f.GetRows(sheets[0])
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls file: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("no sheets found in xls file")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row, ok := xlsRow(sheet, i)
		if !ok {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// xlsRow guards WorkSheet.Row, which panics for rows absent from the sheet.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row, ok bool) {
	defer func() {
		if recover() != nil {
			row, ok = nil, false
		}
	}()
	return sheet.Row(i), true
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		for _, cell := range r {
			if strings.TrimSpace(cell) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
