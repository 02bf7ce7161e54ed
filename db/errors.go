package db

import "fmt"

// ConnectionError reports a failure to resolve a driver or to complete the
// connection handshake. The manager leaves no connection open behind it;
// the next Acquire retries from scratch.
type ConnectionError struct {
	Driver string
	Op     string // "resolve", "dsn", "open", "connect" or "ping"
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection %s failed: %v", e.Driver, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
