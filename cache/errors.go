package cache

import "errors"

// MaxKeyLength is the maximum allowed length of a key's canonical form.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey        = errors.New("cache: key is invalid")
	ErrKeyTooLong        = errors.New("cache: key exceeds max length")
	ErrFetchCanceled     = errors.New("cache: fetch canceled")
	ErrSuperseded        = errors.New("cache: fetch superseded by a newer generation")
	ErrSnapshotDiscarded = errors.New("cache: snapshot already discarded")
	ErrClosed            = errors.New("cache: store is closed")
)
