// Package report writes the processed and low-similarity output tables.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/linkage-cli/internal/linkage"
	"github.com/sells-group/linkage-cli/internal/model"
)

// appended columns, in output order.
var resultColumns = []string{"Latitude", "Longitude", "Location Index", "Best Match Score"}

// WriteCSV emits the records selected by indices as CSV: the original
// columns in input order, then the computed result columns. Unresolved
// coordinates emit empty cells.
func WriteCSV(w io.Writer, table *model.Table, result *linkage.Result, indices []int) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(table.Header)+len(resultColumns))
	header = append(header, table.Header...)
	header = append(header, resultColumns...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write header")
	}

	for _, i := range indices {
		rec := result.Records[i]

		row := make([]string, 0, len(header))
		for _, col := range table.Header {
			switch col {
			case table.NameColumn:
				row = append(row, rec.CompanyName)
			case table.AddressColumn:
				row = append(row, rec.Address)
			default:
				row = append(row, rec.Extra[col])
			}
		}

		if rec.Located {
			row = append(row,
				strconv.FormatFloat(rec.Latitude, 'f', 6, 64),
				strconv.FormatFloat(rec.Longitude, 'f', 6, 64),
			)
		} else {
			row = append(row, "", "")
		}
		row = append(row,
			strconv.Itoa(rec.GroupID),
			strconv.FormatFloat(rec.BestScore, 'f', 2, 64),
		)

		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush")
	}
	return nil
}

// WriteFiles writes the processed and low-similarity partitions to the
// given paths.
func WriteFiles(processedPath, lowPath string, table *model.Table, result *linkage.Result) error {
	if err := writeFile(processedPath, table, result, result.Processed); err != nil {
		return err
	}
	return writeFile(lowPath, table, result, result.LowSimilarity)
}

func writeFile(path string, table *model.Table, result *linkage.Result, indices []int) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}

	if err := WriteCSV(f, table, result, indices); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "report: close %s", path)
	}
	return nil
}
