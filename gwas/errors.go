package gwas

import (
	"fmt"
	"strings"
)

const (
	StageSumstats   = "sumstats"
	StageMarkerList = "marker-list"
	StageMerge      = "merge"
	StageLDJoin     = "ld-join"
	StageMafFilter  = "maf-filter"
	StageOutput     = "output"
)

// DataError reports malformed or missing input. Chrom is zero when the
// failure is not tied to one chromosome.
type DataError struct {
	Stage string
	Chrom int
	Path  string
	Line  int
	Rows  int
	Msg   string
	Err   error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.Chrom > 0 {
		fmt.Fprintf(&b, ": chromosome %d", e.Chrom)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	}
	fmt.Fprintf(&b, ": %s", e.Msg)
	if e.Rows > 0 {
		fmt.Fprintf(&b, " (%d rows)", e.Rows)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataError) Unwrap() error {
	return e.Err
}
