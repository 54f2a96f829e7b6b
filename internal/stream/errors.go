package stream

import "errors"

// ErrDeckNotSupported is returned by every deck transport operation. A
// virtual camera has no tape deck behind it; the operations exist only so
// hosts probing the control surface get a definite answer.
var ErrDeckNotSupported = errors.New("deck transport not supported")
