package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBaseURL is returned for base URLs that cannot be joined with
	// resource paths.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrPasswordWithoutUsername is returned when only a password is configured.
	ErrPasswordWithoutUsername = errors.New("when specifying a password, a username must be provided as well")

	// ErrMalformedLink is returned when the pagination metadata of a page
	// cannot be followed.
	ErrMalformedLink = errors.New("malformed pagination link")

	// ErrNoMatch is returned when no project or branch matches a name.
	ErrNoMatch = errors.New("no match")

	// ErrAmbiguousSelection is returned when a name matches more than one
	// project or branch.
	ErrAmbiguousSelection = errors.New("ambiguous selection")
)

// StatusError reports a response with a non-2xx status code.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}
