package provision

import (
	"errors"
	"fmt"
)

// Code classifies the outcome of a run. 0 is success; each failure class has
// its own value, recorded in the traceability file. The numbering matches the
// established traceability contract of the manufacturing line, so several
// codes exist only for taxonomy fidelity even where explicit error returns
// make them unreachable in practice.
type Code int

const (
	CodeOK                       Code = 0
	CodeFilenameFormat           Code = 1
	CodeAuditAppend              Code = 2
	CodeTraceGenerate            Code = 3
	CodeTraceWrite               Code = 4
	CodeInvalidSerial            Code = 5
	CodeArgumentParse            Code = 6
	CodeConfigConvert            Code = 7
	CodeGetCall                  Code = 8
	CodePostCall                 Code = 9
	CodeAPISetup                 Code = 10
	CodeLogin                    Code = 11
	CodeOrganizationFetch        Code = 12
	CodeRegistrationCodeTemplate Code = 13
	CodeDeviceTemplate           Code = 14
	CodeEntityCreation           Code = 15
	CodeUnexpected               Code = 16
)

// StepError tags an underlying error with its failure class.
type StepError struct {
	Code Code
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// step wraps err with the given failure class; a nil err stays nil.
func step(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Code: code, Err: err}
}

// CodeOf extracts the failure class from err. A nil err is CodeOK; an
// untagged err is CodeUnexpected.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnexpected
}
