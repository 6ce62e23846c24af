// Package squeeze is the archive engine's public surface: Appender, Remover,
// Extracter, Updater and Lister, built on the entry codec, the AppendScheduler
// and the EncoderPool, per spec sections 4.9-4.13.
package squeeze

import "github.com/cockroachdb/errors"

// Status kinds a caller can match with errors.Is. Codec-level kinds (invalid
// method, invalid entry type, and so on) come from the entry and blockcodec
// packages, sometimes wrapped with one of the kinds below and still
// matchable with errors.Is; these are the archive-engine-level kinds from
// spec section 7 that have no natural home closer to the codec.
var (
	ErrStreamRead        = errors.New("stream read error")
	ErrStreamWrite       = errors.New("stream write error")
	ErrInputRead         = errors.New("input read error")
	ErrOutputWrite       = errors.New("output write error")
	ErrInputInit         = errors.New("failed initializing entry input")
	ErrPathTooLong       = errors.New("path too long")
	ErrSymlinkNoTarget   = errors.New("can't create a symlink without a target")
	ErrSymlinkNoContent  = errors.New("symlink entry with no content")
	ErrNoneTypeNoOutput  = errors.New("attempt to extract a none-type entry without a custom output stream")
)

// mark wraps err (if non-nil) so errors.Is(result, kind) holds while the
// original message and any %w chain are preserved, the nestable-status shape
// spec section 7 describes.
func mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, kind.Error()), kind)
}
