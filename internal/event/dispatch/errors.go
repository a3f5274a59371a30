package dispatch

import "errors"

// ErrQueueStalled is returned by Queue.Drain when tasks keep scheduling
// more tasks beyond the tick limit.
var ErrQueueStalled = errors.New("task queue did not drain")
