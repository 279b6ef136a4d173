package gwas

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// TableFileStream reads a tab-separated table with a header row, one record at
// a time. Files ending in .gz are decompressed on the fly.
type TableFileStream struct {
	filename  string
	stage     string
	chrom     int
	file      *os.File
	gz        *gzip.Reader
	reader    *csv.Reader
	header    []string
	columns   map[string]int
	lineCount int
	row       []string
}

func NewTableFileStream(filename, stage string, chrom int) (*TableFileStream, error) {
	tfs := &TableFileStream{
		filename: filename,
		stage:    stage,
		chrom:    chrom,
	}
	if err := tfs.Reset(); err != nil {
		return nil, err
	}
	return tfs, nil
}

// Reset reopens the file and consumes the header row
func (tfs *TableFileStream) Reset() error {
	tfs.Close()

	file, err := os.Open(tfs.filename)
	if err != nil {
		return tfs.dataError("cannot open file", err)
	}
	tfs.file = file

	var r io.Reader = bufio.NewReaderSize(file, 1<<20)
	if strings.HasSuffix(tfs.filename, ".gz") {
		tfs.gz, err = gzip.NewReader(r)
		if err != nil {
			tfs.Close()
			return tfs.dataError("cannot decompress file", err)
		}
		r = tfs.gz
	}

	tfs.reader = csv.NewReader(r)
	tfs.reader.Comma = '\t'
	tfs.reader.Comment = '#'
	tfs.reader.LazyQuotes = true
	tfs.reader.ReuseRecord = true
	tfs.lineCount = 0

	header, err := tfs.reader.Read()
	if err == io.EOF {
		tfs.Close()
		return tfs.dataError("missing header row", nil)
	} else if err != nil {
		tfs.Close()
		return tfs.dataError("cannot read header row", err)
	}
	tfs.lineCount = 1
	tfs.header = make([]string, len(header))
	tfs.columns = make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		tfs.header[i] = name
		if _, ok := tfs.columns[name]; !ok {
			tfs.columns[name] = i
		}
	}
	return nil
}

func (tfs *TableFileStream) Close() {
	if tfs.gz != nil {
		tfs.gz.Close()
		tfs.gz = nil
	}
	if tfs.file != nil {
		tfs.file.Close()
		tfs.file = nil
	}
	tfs.reader = nil
}

// Require returns the column index of each name, or a DataError naming the
// first column that is absent.
func (tfs *TableFileStream) Require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		col, ok := tfs.columns[name]
		if !ok {
			return nil, tfs.dataError("required column "+name+" is absent", nil)
		}
		idx[i] = col
	}
	return idx, nil
}

// Optional returns the column index of name, or -1
func (tfs *TableFileStream) Optional(name string) int {
	if col, ok := tfs.columns[name]; ok {
		return col
	}
	return -1
}

// NextRow returns the next record, or nil at end of file. The returned slice
// is reused by the following call.
func (tfs *TableFileStream) NextRow() ([]string, error) {
	if tfs.reader == nil {
		return nil, nil
	}
	row, err := tfs.reader.Read()
	if err == io.EOF {
		tfs.Close()
		return nil, nil
	} else if err != nil {
		tfs.lineCount++
		return nil, tfs.dataError("malformed row", err)
	}
	tfs.lineCount++
	tfs.row = row
	return row, nil
}

func (tfs *TableFileStream) LineCount() int {
	return tfs.lineCount
}

func (tfs *TableFileStream) Header() []string {
	return tfs.header
}

func (tfs *TableFileStream) Filename() string {
	return tfs.filename
}

// Float parses column col of the current row
func (tfs *TableFileStream) Float(col int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(tfs.row[col]), 64)
	if err != nil {
		return 0, tfs.rowError("cannot parse "+name, err)
	}
	return v, nil
}

func (tfs *TableFileStream) Uint(col int, name string) (uint64, error) {
	s := strings.TrimSpace(tfs.row[col])
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		// positions are sometimes written as floats, e.g. 1.5e+06
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f < 0 || f != float64(uint64(f)) {
			return 0, tfs.rowError("cannot parse "+name, err)
		}
		return uint64(f), nil
	}
	return v, nil
}

func (tfs *TableFileStream) Int(col int, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(tfs.row[col]))
	if err != nil {
		return 0, tfs.rowError("cannot parse "+name, err)
	}
	return v, nil
}

func (tfs *TableFileStream) dataError(msg string, err error) *DataError {
	return &DataError{Stage: tfs.stage, Chrom: tfs.chrom, Path: tfs.filename, Msg: msg, Err: err}
}

func (tfs *TableFileStream) rowError(msg string, err error) *DataError {
	return &DataError{Stage: tfs.stage, Chrom: tfs.chrom, Path: tfs.filename, Line: tfs.lineCount, Msg: msg, Err: errors.Cause(err)}
}
