package recidx

import "errors"

var (
	ErrUniqueViolation = errors.New("recidx: unique lookup matched multiple entries")
	ErrNoStepper       = errors.New("recidx: once-per-step policy requires a stepper")
)
