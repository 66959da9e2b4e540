package model

import "fmt"

// ConfigError reports invalid or incoherent metric parameters. It is raised
// by validation and must stop processing before any data access happens.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Msg)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// DataAccessError reports a store or import read failure. The record source
// recovers it locally: it is logged and surfaced only so calculators can note
// that "no data" meant "no reachable data".
type DataAccessError struct {
	Op    string
	Table string
	Err   error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed: %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// EvaluationError reports a malformed formula, an undefined variable
// reference, or a non-numeric result.
type EvaluationError struct {
	Formula string
	Msg     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %s", e.Formula, e.Msg)
}
