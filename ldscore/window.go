package ldscore

import (
	"math"

	"github.com/pkg/errors"
)

// Window is a symmetric window of Size units (centimorgans or base pairs)
// centred on each marker. Both edges are inclusive.
type Window struct {
	Method Method
	Size   float64
}

func (w Window) Half() float64 {
	return w.Size / 2
}

func (w Window) Validate() error {
	if w.Method != MethodCM && w.Method != MethodBP {
		return errors.Errorf("unknown window method %q", w.Method)
	}
	if math.IsNaN(w.Size) || w.Size < 0 {
		return &DegenerateWindowError{Index: -1, Size: w.Size}
	}
	return nil
}

// WindowMeans returns, for every i, the mean of l2[j] over all j with
// pos[i]-size/2 <= pos[j] <= pos[i]+size/2, and the number of such j.
// pos must be finite and non-decreasing.
func WindowMeans(pos, l2 []float64, size float64) ([]float64, []int, error) {
	return windowMeans(0, pos, l2, size)
}

func windowMeans(chrom int, pos, l2 []float64, size float64) ([]float64, []int, error) {
	n := len(pos)
	if len(l2) != n {
		return nil, nil, errors.Errorf("chromosome %d: %d positions but %d ld values", chrom, n, len(l2))
	}
	if math.IsNaN(size) || size < 0 {
		return nil, nil, &DegenerateWindowError{Chrom: chrom, Index: 0, Rows: n, Size: size}
	}
	if err := checkSorted(chrom, pos); err != nil {
		return nil, nil, err
	}

	means := make([]float64, n)
	counts := make([]int, n)
	half := size / 2

	// markers start..end (inclusive) are inside the window of marker i
	start, end := 0, -1
	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		lo, hi := pos[i]-half, pos[i]+half
		for start < n && pos[start] < lo {
			if start <= end {
				sum -= l2[start]
				count--
			}
			start++
		}
		if end < start-1 {
			end = start - 1
		}
		if count == 0 {
			sum = 0
		}
		for end+1 < n && pos[end+1] <= hi {
			end++
			sum += l2[end]
			count++
		}
		if count <= 0 {
			return nil, nil, &DegenerateWindowError{Chrom: chrom, Index: i, Rows: n, Size: size}
		}
		means[i] = sum / float64(count)
		counts[i] = count
	}
	return means, counts, nil
}

func checkSorted(chrom int, pos []float64) error {
	for i := range pos {
		if math.IsNaN(pos[i]) || math.IsInf(pos[i], 0) {
			return &PreconditionError{Chrom: chrom, Index: i, Rows: len(pos), Msg: "non-finite position"}
		}
		if i > 0 && pos[i] < pos[i-1] {
			return &PreconditionError{Chrom: chrom, Index: i, Rows: len(pos), Msg: "positions not sorted ascending"}
		}
	}
	return nil
}
