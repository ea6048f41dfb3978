package postgres

import "errors"

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrTableNotFound            = errors.New("table not found")
	ErrInvalidTableName         = errors.New("invalid table name")
)
