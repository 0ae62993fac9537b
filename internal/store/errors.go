package store

import "errors"

// ErrUnavailable wraps any transient store/queue/object-store failure. The
// executor converts it to a step "exception" rather than "error" per the
// failure taxonomy.
var ErrUnavailable = errors.New("store: unavailable")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrTemplateNotFound is returned by the template client when no HTML
// exists for the requested template name.
var ErrTemplateNotFound = errors.New("store: template not found")
