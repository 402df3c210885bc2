// package faults
//
// error classes shared by every migration component, match them with errors.Is
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig : bad job file, unsupported database type, unreadable type mapping
	ErrConfig = errors.New("configuration error")
	// ErrUnsupportedDatabase : the database type tag has no connector
	ErrUnsupportedDatabase = fmt.Errorf("%w : unsupported database type", ErrConfig)
	// ErrConnection : source or target cannot be reached, fatal for every table using it
	ErrConnection = errors.New("connection error")
	// ErrSchemaMismatch : column names drifted and force load was not requested
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrLoad : a chunk transfer or copy failed, parts loaded before it are kept
	ErrLoad = errors.New("load error")
	// ErrCancelled : the run was cancelled before the table started
	ErrCancelled = errors.New("migration cancelled")
)
