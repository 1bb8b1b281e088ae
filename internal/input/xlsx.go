package input

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/linkage-cli/internal/model"
)

// XLSXOptions configure spreadsheet parsing.
type XLSXOptions struct {
	Options

	// SheetName selects a sheet by name; empty selects SheetIndex.
	SheetName  string
	SheetIndex int
}

// ReadXLSX parses an XLSX file into a Table. The first row of the
// selected sheet is the header.
func ReadXLSX(path string, opts XLSXOptions) (*model.Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open xlsx")
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, r := range sheet.Rows {
		cells := make([]string, len(r.Cells))
		for j, cell := range r.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	// Spreadsheet rows are ragged; pad to the header width so the
	// decoder sees rectangular records.
	if len(rows) > 0 {
		width := len(rows[0])
		for i := range rows {
			for len(rows[i]) < width {
				rows[i] = append(rows[i], "")
			}
			if len(rows[i]) > width {
				rows[i] = rows[i][:width]
			}
		}
	}

	return decodeTable(&sliceSource{rows: rows}, opts.Options)
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("input: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("input: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

// sliceSource adapts in-memory rows to the rowSource contract.
type sliceSource struct {
	rows [][]string
	i    int
}

func (s *sliceSource) Read() ([]string, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.i]
	s.i++
	return r, nil
}
