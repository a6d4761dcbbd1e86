package server

import "errors"

var (
	errClosed       = errors.New("session closed")
	errBackpressure = errors.New("session send buffer full")
)
