package repository

import "context"

// ChangeFeed announces that a user's task collection changed. It carries no
// payload: watchers re-run their query.
type ChangeFeed interface {
	Publish(ctx context.Context, userID string) error
	// Watch starts listening for changes to userID's tasks. Changes published
	// after Watch returns are guaranteed to be observed.
	Watch(ctx context.Context, userID string) (ChangeStream, error)
}

// ChangeStream is one live listener. Changes are coalesced: several publishes
// may surface as a single receive. The channel is closed when the stream
// fails or after Close.
type ChangeStream interface {
	Changes() <-chan struct{}
	Close() error
}
