package deflate

import "github.com/cockroachdb/errors"

var (
	ErrRepeatWithoutPrevious = errors.New("code-length repeat symbol with no previous length")
	ErrInvalidHeaderBits     = errors.New("invalid header bits")
	ErrUnsupportedBlockType  = errors.New("unsupported block type")
	ErrInvalidCodeLengths    = errors.New("invalid code lengths decoded")
	ErrLitLenDecode          = errors.New("failed decoding literal/length symbol")
	ErrInvalidDistanceSymbol = errors.New("invalid distance symbol")
	ErrDistanceBeforeStart   = errors.New("distance points before start of data")
	ErrInvalidLenDistSymbol  = errors.New("invalid length/distance symbol")
)
