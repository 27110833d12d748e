package artifacts

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// LabeledTable is a matrix with row and column labels, as read from a spreadsheet.
type LabeledTable struct {
	Rows    []string
	Columns []string
	Values  *mat.Dense
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func isSpreadsheet(path string) bool {
	return extension(path) == ".xlsx"
}

// DecodeMatrix decodes a matrix file by extension: .mat and .bin hold a gonum
// binary blob, .json a JSON array of rows where null stands for NaN.
func DecodeMatrix(path string, data []byte) (*mat.Dense, error) {
	switch extension(path) {
	case ".mat", ".bin":
		var m mat.Dense
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return &m, nil
	case ".json":
		var rows [][]*float64
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return denseFromRows(path, rows)
	default:
		return nil, fmt.Errorf("decode %s: unsupported matrix format %q", path, extension(path))
	}
}

func denseFromRows(path string, rows [][]*float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("decode %s: matrix is empty", path)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("decode %s: row %d has %d columns, expected %d", path, i, len(row), cols)
		}
		for _, v := range row {
			if v == nil {
				data = append(data, math.NaN())
				continue
			}
			data = append(data, *v)
		}
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func EncodeMatrix(m *mat.Dense) ([]byte, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}
	return data, nil
}

func DecodeLabels(path string, data []byte) ([]string, error) {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return labels, nil
}

func EncodeLabels(labels []string) ([]byte, error) {
	return json.MarshalIndent(labels, "", "  ")
}

// DecodeTable reads a spreadsheet whose header row holds column labels and
// whose first column holds row labels. Empty cells decode as NaN. An empty
// sheet name selects the first sheet.
func DecodeTable(path string, data []byte, sheet string) (LabeledTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return LabeledTable{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return LabeledTable{}, fmt.Errorf("open %s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return LabeledTable{}, fmt.Errorf("read %s sheet %q: %w", path, sheet, err)
	}
	if len(rows) < 2 || len(rows[0]) < 2 {
		return LabeledTable{}, fmt.Errorf("read %s sheet %q: expected a header row and at least one data row", path, sheet)
	}

	columns := make([]string, 0, len(rows[0])-1)
	for _, label := range rows[0][1:] {
		columns = append(columns, strings.TrimSpace(label))
	}

	table := LabeledTable{
		Columns: columns,
		Values:  mat.NewDense(len(rows)-1, len(columns), nil),
	}
	for i, row := range rows[1:] {
		if len(row) == 0 {
			return LabeledTable{}, fmt.Errorf("read %s sheet %q: row %d is empty", path, sheet, i+2)
		}
		if len(row)-1 > len(columns) {
			return LabeledTable{}, fmt.Errorf("read %s sheet %q: row %d has %d values for %d columns", path, sheet, i+2, len(row)-1, len(columns))
		}
		table.Rows = append(table.Rows, strings.TrimSpace(row[0]))
		for j := range columns {
			v := math.NaN()
			if j+1 < len(row) && strings.TrimSpace(row[j+1]) != "" {
				v, err = strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
				if err != nil {
					cell, _ := excelize.CoordinatesToCellName(j+2, i+2)
					return LabeledTable{}, fmt.Errorf("read %s sheet %q: cell %s: %w", path, sheet, cell, err)
				}
			}
			table.Values.Set(i, j, v)
		}
	}
	return table, nil
}

// EncodeTable writes a labeled table as a single-sheet workbook. NaN values
// are left as empty cells.
func EncodeTable(table LabeledTable, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = "distances"
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}

	header := make([]interface{}, 0, len(table.Columns)+1)
	header = append(header, "")
	for _, c := range table.Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("encode table header: %w", err)
	}

	r, c := table.Values.Dims()
	for i := 0; i < r; i++ {
		row := make([]interface{}, 0, c+1)
		row = append(row, table.Rows[i])
		for j := 0; j < c; j++ {
			v := table.Values.At(i, j)
			if math.IsNaN(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("encode table: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("encode table row %d: %w", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return buf.Bytes(), nil
}
