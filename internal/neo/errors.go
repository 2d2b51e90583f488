package neo

import "errors"

var (
	// ErrUpstream marks a failure talking to the upstream provider: network errors, timeouts,
	// non-2xx responses and malformed payloads.
	ErrUpstream = errors.New("upstream error")

	// ErrUpstreamUnavailable is returned when a fetch fails and no cached value of any age exists.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned when a valid query matches no object.
	ErrNotFound = errors.New("near-earth object not found")

	// ErrInvalidArgument is returned for out-of-range query parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)
