package capture

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed slot or source.
var ErrClosed = errors.New("capture: closed")

// Source produces frames until ctx is cancelled or the device fails.
//
// Start blocks. Every frame handed to sink is owned by the sink, which must
// release it.
type Source interface {
	Start(ctx context.Context, sink func(*Frame)) error
	Close() error
}
