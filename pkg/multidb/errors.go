package multidb

import "errors"

var (
	ErrInvalidName       = errors.New("multidb: invalid database name")
	ErrDatabaseExists    = errors.New("multidb: database already exists")
	ErrDatabaseNotFound  = errors.New("multidb: database not found")
	ErrUnsupportedKind   = errors.New("multidb: unsupported database kind or storage mode")
	ErrQuotaExceeded     = errors.New("multidb: memory quota exceeded")
	ErrCannotDropDefault = errors.New("multidb: cannot drop the default database")
	ErrDatabaseBroken    = errors.New("multidb: database entry is broken")
	ErrMaxDatabasesReached = errors.New("multidb: maximum number of databases reached")
)
