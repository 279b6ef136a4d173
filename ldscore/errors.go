package ldscore

import "fmt"

// PreconditionError reports input that reached the window scan unsorted or with
// non-finite positions.
type PreconditionError struct {
	Chrom int
	Index int
	Rows  int
	Msg   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("aggregate: chromosome %d: %s (row %d of %d)", e.Chrom, e.Msg, e.Index, e.Rows)
}

// DegenerateWindowError reports a marker whose window holds no markers.
type DegenerateWindowError struct {
	Chrom int
	Index int
	Rows  int
	Size  float64
}

func (e *DegenerateWindowError) Error() string {
	return fmt.Sprintf("aggregate: chromosome %d: empty window of size %v at row %d of %d", e.Chrom, e.Size, e.Index, e.Rows)
}
