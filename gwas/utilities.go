package gwas

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/ldsc/ldscore"
	"go.dedis.ch/onet/v3/log"
)

// LDScoreColumns is the header of the per-marker output table
var LDScoreColumns = []string{"SNP", "Z", "CHR", "CM", "BP", "L2", "LDSCORE"}

// CoefColumns is the header of the regression input table
var CoefColumns = []string{"LDSCORE", "Z^2"}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// writeTable creates filename and writes a tab-separated header followed by
// one line per call of row, for i in [0, n).
func writeTable(filename string, header []string, n int, row func(i int, line []string)) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Msg: "cannot create output directory", Err: err}
	}
	file, err := os.Create(filename)
	if err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Msg: "cannot create file", Err: err}
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writer.WriteString(strings.Join(header, "\t") + "\n")
	line := make([]string, len(header))
	for i := 0; i < n; i++ {
		row(i, line)
		writer.WriteString(strings.Join(line, "\t") + "\n")
	}
	if err := writer.Flush(); err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Rows: n, Msg: "cannot write file", Err: err}
	}
	if err := file.Sync(); err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Rows: n, Msg: "cannot sync file", Err: err}
	}
	log.LLvl1("Saved data to", filename)
	return nil
}

// WriteLDScoreTable writes SNP Z CHR CM BP L2 LDSCORE for every row
func WriteLDScoreTable(filename string, table *ldscore.Table) error {
	return writeTable(filename, LDScoreColumns, table.Len(), func(i int, line []string) {
		r := &table.Rows[i]
		line[0] = r.SNP
		line[1] = formatFloat(r.Z)
		line[2] = strconv.Itoa(r.Chrom)
		line[3] = formatFloat(r.CM)
		line[4] = strconv.FormatUint(r.BP, 10)
		line[5] = formatFloat(r.L2)
		line[6] = formatFloat(r.LDScore)
	})
}

// WriteCoefTable writes the regressor and response, LDSCORE and Z^2
func WriteCoefTable(filename string, table *ldscore.Table) error {
	return writeTable(filename, CoefColumns, table.Len(), func(i int, line []string) {
		r := &table.Rows[i]
		line[0] = formatFloat(r.LDScore)
		line[1] = formatFloat(r.Z * r.Z)
	})
}

// WriteResult encodes the run summary as toml
func WriteResult(filename string, res *Result) error {
	file, err := os.Create(filename)
	if err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Msg: "cannot create file", Err: err}
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(res); err != nil {
		return &DataError{Stage: StageOutput, Path: filename, Msg: "cannot encode result", Err: err}
	}
	log.LLvl1("Saved data to", filename)
	return nil
}

// ReadResult decodes a summary written by WriteResult
func ReadResult(filename string) (*Result, error) {
	res := new(Result)
	if _, err := toml.DecodeFile(filename, res); err != nil {
		return nil, &DataError{Stage: StageOutput, Path: filename, Msg: "cannot decode result", Err: err}
	}
	return res, nil
}

func Min(a int, b int) int {
	if a > b {
		return b
	}
	return a
}

// StartLogFile copies every log message at or below debugLvl into filename,
// truncating it first. The returned stop detaches and closes the file.
func StartLogFile(filename string, debugLvl int) (stop func(), err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, &DataError{Stage: StageOutput, Path: filename, Msg: "cannot create log directory", Err: err}
	}
	lg, err := log.NewFileLogger(&log.LoggerInfo{DebugLvl: debugLvl, ShowTime: true}, filename)
	if err != nil {
		return nil, &DataError{Stage: StageOutput, Path: filename, Msg: "cannot open log file", Err: err}
	}
	key := log.RegisterLogger(lg)
	return func() { log.UnregisterLogger(key) }, nil
}
