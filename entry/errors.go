package entry

import "github.com/cockroachdb/errors"

var (
	ErrInvalidCompressionMethod = errors.New("invalid compression method")
	ErrInvalidEntryType         = errors.New("invalid entry type")
	ErrPathTooLong              = errors.New("path exceeds 65535 bytes")
)
