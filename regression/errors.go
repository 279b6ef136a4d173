package regression

import "fmt"

// NumericalError aborts a fit. Index is the offending observation, or -1 when
// the failure concerns the whole system.
type NumericalError struct {
	Iteration int
	Index     int
	Value     float64
	Rows      int
	Msg       string
}

func (e *NumericalError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("regression: iteration %d: %s (%d rows)", e.Iteration, e.Msg, e.Rows)
	}
	return fmt.Sprintf("regression: iteration %d: %s at row %d of %d (value %v)", e.Iteration, e.Msg, e.Index, e.Rows, e.Value)
}
