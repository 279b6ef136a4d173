package ldscore

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type Method string

const (
	MethodCM Method = "CM"
	MethodBP Method = "BP"
)

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodCM:
		return MethodCM, nil
	case MethodBP:
		return MethodBP, nil
	}
	return "", errors.Errorf("unknown window method %q, expected CM or BP", s)
}

// Marker is one row of a chromosome's working table after the reference join
type Marker struct {
	SNP   string
	Z     float64
	Chrom int
	CM    float64
	BP    uint64
	L2    float64
	MAF   float64
}

// Position returns the ordering column selected by method
func (m *Marker) Position(method Method) float64 {
	if method == MethodBP {
		return float64(m.BP)
	}
	return m.CM
}

type ChromTable struct {
	Chrom   int
	Markers []Marker
}

func (t *ChromTable) Len() int {
	return len(t.Markers)
}

// SortByPosition orders the markers ascending by the method's column.
// Equal positions keep their input order.
func (t *ChromTable) SortByPosition(method Method) {
	sort.SliceStable(t.Markers, func(i, j int) bool {
		return t.Markers[i].Position(method) < t.Markers[j].Position(method)
	})
}

func (t *ChromTable) Positions(method Method) []float64 {
	pos := make([]float64, len(t.Markers))
	for i := range t.Markers {
		pos[i] = t.Markers[i].Position(method)
	}
	return pos
}

func (t *ChromTable) L2() []float64 {
	l2 := make([]float64, len(t.Markers))
	for i := range t.Markers {
		l2[i] = t.Markers[i].L2
	}
	return l2
}

// Row is one aggregated output row. M is the number of markers in the window.
type Row struct {
	SNP     string
	Chrom   int
	Z       float64
	CM      float64
	BP      uint64
	L2      float64
	LDScore float64
	M       int
}

type Table struct {
	Rows   []Row
	scaled bool
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Scale multiplies every LD score by refN / totalMarkerCount. The marker count is
// taken over the whole table, so Scale must run after all chromosomes are assembled.
func (t *Table) Scale(refN float64) error {
	if t.scaled {
		return errors.New("ld score table already scaled")
	}
	if len(t.Rows) == 0 {
		return errors.New("cannot scale an empty ld score table")
	}
	if !(refN > 0) {
		return errors.Errorf("reference sample size must be positive, got %v", refN)
	}
	factor := refN / float64(len(t.Rows))
	for i := range t.Rows {
		t.Rows[i].LDScore *= factor
	}
	t.scaled = true
	return nil
}

func (t *Table) Scaled() bool {
	return t.scaled
}

// X returns the LD score column
func (t *Table) X() []float64 {
	x := make([]float64, len(t.Rows))
	for i := range t.Rows {
		x[i] = t.Rows[i].LDScore
	}
	return x
}

// ChiSquared returns Z^2 for each row
func (t *Table) ChiSquared() []float64 {
	y := make([]float64, len(t.Rows))
	for i := range t.Rows {
		y[i] = t.Rows[i].Z * t.Rows[i].Z
	}
	return y
}

func (t *Table) NumChroms() int {
	seen := make(map[int]struct{})
	for i := range t.Rows {
		seen[t.Rows[i].Chrom] = struct{}{}
	}
	return len(seen)
}
