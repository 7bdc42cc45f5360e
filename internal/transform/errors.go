package transform

import "errors"

var (
	// ErrNotJSON is returned when a JSON transform receives a value that is not
	// a valid JSON document.
	ErrNotJSON = errors.New("value is not a JSON document")

	// ErrNoTransformFunc is returned when a script does not define a global
	// transform function.
	ErrNoTransformFunc = errors.New("script does not define a transform function")

	// ErrScriptClosed is returned when a closed script is invoked.
	ErrScriptClosed = errors.New("script is closed")
)
