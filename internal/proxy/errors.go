package proxy

import "errors"

// ErrBackendDown is returned by Ready and Submit on a Backend whose worker
// has terminated. The condition is permanent for that handle; the caller
// must build a new pipeline to reach the target again.
var ErrBackendDown = errors.New("cabbage: backend worker has terminated")
