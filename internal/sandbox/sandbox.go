// Package sandbox runs untrusted generated code units against a restricted
// namespace. Code units are Starlark: a deterministic, hermetic interpreter
// with no ambient authority, so what generated code can reference is bounded
// by what the namespace pre-seeds (the dataset handle and the charting
// constructors, nothing else). This bounds names, not resources; there are
// no time or memory limits here.
package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/rabbitlabs/rabbit/internal/dataset"
	"github.com/rabbitlabs/rabbit/internal/metrics"
)

// Fault is the typed failure outcome of one execution attempt: parse
// errors, name errors, type errors and arbitrary runtime faults all land
// here. Callers branch on success/failure, never on fault subtype.
type Fault struct {
	Detail string
}

func (f *Fault) Error() string {
	return f.Detail
}

// Namespace builds the restricted namespace a code unit executes against:
// the dataset bound as `df`, plus the chart constructors the prompts
// advertise.
func Namespace(ds *dataset.Dataset) starlark.StringDict {
	env := Builtins()
	env["df"] = NewDatasetValue(ds)
	return env
}

// Execute runs one code unit against the given namespace and returns the
// globals it bound. Execution is a single pass; retries happen a layer up
// with a different code unit, never by re-running identical code. Any fault
// is returned as *Fault; nothing escapes as a panic.
func Execute(code string, predeclared starlark.StringDict) (globals starlark.StringDict, err error) {
	defer func() {
		if r := recover(); r != nil {
			globals = nil
			err = &Fault{Detail: fmt.Sprintf("execution panic: %v", r)}
			metrics.ExecutionsTotal.WithLabelValues("fault").Inc()
		}
	}()

	thread := &starlark.Thread{
		Name:  "codeunit",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	globals, execErr := starlark.ExecFile(thread, "generated.star", code, predeclared)
	if execErr != nil {
		metrics.ExecutionsTotal.WithLabelValues("fault").Inc()
		detail := execErr.Error()
		if evalErr, ok := execErr.(*starlark.EvalError); ok {
			detail = evalErr.Backtrace()
		}
		return nil, &Fault{Detail: detail}
	}

	metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
	return globals, nil
}
