package bot

import (
	"errors"
	"fmt"
)

// FatalError reports a broken invariant. The run loop stops on it and the
// process exits non-zero.
type FatalError struct {
	Mode   Mode
	Step   string
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: mode=%s step=%s: %s", e.Mode, e.Step, e.Reason)
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func fatalf(m Mode, step fmt.Stringer, format string, args ...any) *FatalError {
	return &FatalError{Mode: m, Step: step.String(), Reason: fmt.Sprintf(format, args...)}
}

// unreachable is returned when an in-flight step is ticked with no completion
// recorded for it.
func unreachable(m Mode, step fmt.Stringer) *FatalError {
	return fatalf(m, step, "should never enter %s at rest", step)
}
