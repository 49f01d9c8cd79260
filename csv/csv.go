// Package csv is a wrapper around the stdlib csv library that provides a nice API for the GTFS static parser.
//
// Because, of course, everything can be solved with another layer of indirection.
package csv

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/jamespfennell/gtfsgo/constants"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type File struct {
	name                   constants.StaticFile
	csvReader              *csv.Reader
	headerMap              map[string]int
	rowNumber              int
	missingRequiredColumns []string
	pending                []string
	currentRow             *row
	ioErr                  error
	closer                 func() error
}

type row struct {
	cells       []string
	missingKeys []string
}

// New reads the header row of the file and peeks at the first data row, so that Empty is known up front.
func New(name constants.StaticFile, reader io.ReadCloser) (*File, error) {
	csvReader := BOMAwareCSVReader(reader)
	csvReader.FieldsPerRecord = -1
	firstRow, err := csvReader.Read()
	if err == io.EOF {
		// No header row either. The file is empty.
		return &File{name: name, headerMap: map[string]int{}, closer: reader.Close}, nil
	} else if err != nil {
		reader.Close()
		return nil, err
	}
	csvReader.ReuseRecord = true
	m := map[string]int{}
	for i, colHeader := range firstRow {
		colHeader = strings.TrimSpace(colHeader)
		firstRow[i] = colHeader
		m[colHeader] = i
	}
	f := &File{
		name:      name,
		headerMap: m,
		csvReader: csvReader,
		closer:    reader.Close,
	}
	pending, err := csvReader.Read()
	if err != nil && err != io.EOF {
		reader.Close()
		return nil, err
	}
	if err == nil {
		f.pending = append([]string(nil), pending...)
	}
	return f, nil
}

func (f *File) Name() constants.StaticFile {
	return f.name
}

// Empty reports whether the file has no data rows.
func (f *File) Empty() bool {
	return f.rowNumber == 0 && f.pending == nil
}

type RequiredColumn struct {
	i int
	s string
	f *File
}

func (f *File) RequiredColumn(s string) RequiredColumn {
	i, b := f.headerMap[s]
	if !b {
		f.missingRequiredColumns = append(f.missingRequiredColumns, s)
		i = -1
	}
	return RequiredColumn{i, s, f}
}

func (p *File) MissingRequiredColumns() []string {
	if len(p.missingRequiredColumns) == 0 {
		return nil
	}
	return p.missingRequiredColumns
}

func (c RequiredColumn) Name() string {
	return c.s
}

func (c RequiredColumn) Read() string {
	r := c.f.currentRow
	if c.i < 0 || c.i >= len(r.cells) || strings.TrimSpace(r.cells[c.i]) == "" {
		r.missingKeys = append(r.missingKeys, c.s)
		return ""
	}
	return r.cells[c.i]
}

type OptionalColumn struct {
	i int
	s string
	f *File
}

func (f *File) OptionalColumn(s string) OptionalColumn {
	i, b := f.headerMap[s]
	if !b {
		i = -1
	}
	return OptionalColumn{i: i, s: s, f: f}
}

func (c OptionalColumn) Name() string {
	return c.s
}

func (c OptionalColumn) Read() string {
	return c.ReadOr("")
}

func (c OptionalColumn) ReadOr(s string) string {
	if c.i < 0 || c.i >= len(c.f.currentRow.cells) {
		return s
	}
	return c.f.currentRow.cells[c.i]
}

func (f *File) NextRow() bool {
	var cells []string
	if f.pending != nil {
		cells, f.pending = f.pending, nil
	} else if f.csvReader == nil {
		return false
	} else {
		var err error
		cells, err = f.csvReader.Read()
		if err == io.EOF {
			f.currentRow = nil
			return false
		}
		if err != nil {
			f.currentRow = nil
			f.ioErr = err
			return false
		}
	}
	if f.currentRow == nil {
		f.currentRow = &row{}
	}
	f.rowNumber += 1
	f.currentRow.cells = cells
	f.currentRow.missingKeys = nil
	return true
}

func (f *File) RowNumber() int {
	return f.rowNumber
}

func (f *File) MissingRowKeys() []string {
	return f.currentRow.missingKeys
}

func (f *File) Close() error {
	closeErr := f.closer()
	if f.ioErr != nil {
		return f.ioErr
	}
	return closeErr
}

// From: https://stackoverflow.com/a/76023436
//
// BOMAwareCSVReader will detect a UTF BOM (Byte Order Mark) at the
// start of the data and transform to UTF8 accordingly.
// If there is no BOM, it will read the data without any transformation.
func BOMAwareCSVReader(reader io.Reader) *csv.Reader {
	var transformer = unicode.BOMOverride(encoding.Nop.NewDecoder())
	return csv.NewReader(transform.NewReader(reader, transformer))
}
