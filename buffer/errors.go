package buffer

import "errors"

// Sentinel error kinds the buffer pool manager can return, matching the
// storage kernel's documented error taxonomy. Callers should use
// errors.Is against these rather than comparing strings.
var (
	ErrPoolExhausted   = errors.New("buffer: pool exhausted, no frame available")
	ErrPageNotResident = errors.New("buffer: page is not resident in the pool")
	ErrDoubleUnpin     = errors.New("buffer: frame unpinned more times than it was pinned")
)
