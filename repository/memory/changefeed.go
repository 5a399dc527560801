package memory

import (
	"context"
	"sync"

	"github.com/fastygo/taskboard/repository"
)

// ChangeFeed is an in-process change feed for single-instance deployments
// running on the embedded store.
type ChangeFeed struct {
	mtx      sync.RWMutex
	watchers map[string]map[*changeStream]struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		watchers: make(map[string]map[*changeStream]struct{}),
	}
}

func (f *ChangeFeed) Publish(ctx context.Context, userID string) error {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	for s := range f.watchers[userID] {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *ChangeFeed) Watch(ctx context.Context, userID string) (repository.ChangeStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &changeStream{
		feed:    f,
		userID:  userID,
		changes: make(chan struct{}, 1),
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.watchers[userID] == nil {
		f.watchers[userID] = make(map[*changeStream]struct{})
	}
	f.watchers[userID][s] = struct{}{}
	return s, nil
}

// Watchers returns the number of open streams for userID.
func (f *ChangeFeed) Watchers(userID string) int {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return len(f.watchers[userID])
}

func (f *ChangeFeed) remove(s *changeStream) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	streams := f.watchers[s.userID]
	if _, ok := streams[s]; !ok {
		return
	}
	delete(streams, s)
	if len(streams) == 0 {
		delete(f.watchers, s.userID)
	}
	close(s.changes)
}

type changeStream struct {
	feed    *ChangeFeed
	userID  string
	changes chan struct{}
}

func (s *changeStream) Changes() <-chan struct{} {
	return s.changes
}

func (s *changeStream) Close() error {
	s.feed.remove(s)
	return nil
}

var _ repository.ChangeFeed = (*ChangeFeed)(nil)
