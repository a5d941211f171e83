package querylang

import "errors"

// Sentinel errors the dispatcher (pkg/dispatch) translates into the
// kind-tag taxonomy.
var (
	ErrParse       = errors.New("querylang: parse error")
	ErrSemantic    = errors.New("querylang: semantic error")
	ErrBadLanguage = errors.New("querylang: unsupported language")
)
