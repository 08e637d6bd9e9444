package fleet

import "errors"

// ErrBadFilter is returned when a filter expression cannot be parsed.
var ErrBadFilter = errors.New("bad filter expression")

// ErrNodeAbsent is returned when a remote operation targets a node with no
// backing instance.
var ErrNodeAbsent = errors.New("node has no backing instance")

// ErrNotConnected is returned when a session operation requires an
// authenticated, active transport and none is available.
var ErrNotConnected = errors.New("session not connected")

// ErrNoRegion is returned when an operation needs a cloud region and none is
// configured.
var ErrNoRegion = errors.New("no region configured")

// ErrNoProvider is returned when an operation needs a cloud provider and none
// is configured.
var ErrNoProvider = errors.New("no cloud provider configured")

// ErrNoTemplate is returned when a named cluster template does not exist.
var ErrNoTemplate = errors.New("unknown cluster template")

// ErrBadTemplate is returned when a cluster template has neither a name nor a
// usable filter.
var ErrBadTemplate = errors.New("cluster template needs a name or a key=value filter")
