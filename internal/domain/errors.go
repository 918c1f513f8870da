package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream marks a market-data request that failed for good, either
	// because retries were exhausted or because the venue rejected it outright.
	ErrUpstream = errors.New("upstream request failed")
)
