package services

import (
	"errors"
	"fmt"
)

// ErrNoIdentifiers is recorded when a strategy got a response that was
// neither valid nor an explicit rejection.
var ErrNoIdentifiers = errors.New("search: response carried no usable identifiers")

// BusinessRejectionError records an explicit upstream rejection seen by one
// strategy. It never escapes Resolve; the direct strategy surfaces it as
// SearchFailedError instead.
type BusinessRejectionError struct {
	Strategy string
	Message  string
}

func (e *BusinessRejectionError) Error() string {
	return fmt.Sprintf("search: %s strategy rejected: %s", e.Strategy, e.Message)
}

// SearchFailedError is the only error Resolve returns for an upstream
// outcome: the final strategy received an explicit rejection.
type SearchFailedError struct {
	Message string
}

func (e *SearchFailedError) Error() string {
	return "search failed: " + e.Message
}

func IsSearchFailed(err error) bool {
	var sf *SearchFailedError
	return errors.As(err, &sf)
}
