package workorder

import "errors"

// ErrNotFound is returned when a referenced work order, step, or related
// record (event, stage) does not exist.
var ErrNotFound = errors.New("workorder: not found")
