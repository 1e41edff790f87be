package typed

import "errors"

// ErrPointerType is returned for element types that hold Go pointers.
var ErrPointerType = errors.New("typed: type contains Go pointers")
