// Package input parses tabular company datasets from CSV and XLSX
// sources, resolving local paths, HTTP URLs, and FTP URLs.
package input

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/linkage-cli/internal/model"
)

// Options configure table parsing.
type Options struct {
	// NameColumn and AddressColumn are matched against the header after
	// whitespace trimming.
	NameColumn    string
	AddressColumn string

	// Limit truncates the table to the first N rows (0 = no limit).
	Limit int
}

// row is the decode target for the two interpreted columns; everything
// else is captured from the decoder's unused set.
type row struct {
	CompanyName string `csv:"company_name"`
	Address     string `csv:"address"`
}

// rowSource yields one record per call, io.EOF at the end. Both the
// csv.Reader and the in-memory XLSX rows satisfy it.
type rowSource interface {
	Read() ([]string, error)
}

// ReadCSV parses a CSV stream into a Table. The header row is required;
// header names are whitespace-trimmed before matching. Columns other
// than the two configured ones are preserved verbatim.
func ReadCSV(r io.Reader, opts Options) (*model.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return decodeTable(cr, opts)
}

// decodeTable reads the header from src, then decodes the remaining
// rows with csvutil, capturing uninterpreted columns per record.
func decodeTable(src rowSource, opts Options) (*model.Table, error) {
	rawHeader, err := src.Read()
	if err == io.EOF {
		return nil, eris.New("input: empty dataset")
	}
	if err != nil {
		return nil, eris.Wrap(err, "input: read header")
	}

	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = strings.TrimSpace(h)
	}

	nameIdx, addrIdx := -1, -1
	for i, h := range header {
		switch h {
		case opts.NameColumn:
			nameIdx = i
		case opts.AddressColumn:
			addrIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("input: missing column %q", opts.NameColumn)
	}
	if addrIdx < 0 {
		return nil, eris.Errorf("input: missing column %q", opts.AddressColumn)
	}

	// Rename the interpreted columns to the decoder's tags; everything
	// else stays unused and is captured per row.
	mapped := make([]string, len(header))
	copy(mapped, header)
	mapped[nameIdx] = "company_name"
	mapped[addrIdx] = "address"

	dec, err := csvutil.NewDecoder(src, mapped...)
	if err != nil {
		return nil, eris.Wrap(err, "input: build decoder")
	}

	table := &model.Table{
		Header:        header,
		NameColumn:    header[nameIdx],
		AddressColumn: header[addrIdx],
	}

	for {
		var r row
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "input: decode row")
		}

		rec := model.Record{
			CompanyName: strings.TrimSpace(r.CompanyName),
			Address:     strings.TrimSpace(r.Address),
		}
		if unused := dec.Unused(); len(unused) > 0 {
			line := dec.Record()
			rec.Extra = make(map[string]string, len(unused))
			for _, ui := range unused {
				if ui < len(line) {
					rec.Extra[header[ui]] = line[ui]
				}
			}
		}
		table.Records = append(table.Records, rec)

		if opts.Limit > 0 && len(table.Records) >= opts.Limit {
			break
		}
	}

	return table, nil
}
