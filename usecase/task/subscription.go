package task

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// ErrFeedClosed is delivered when the change feed drops a live subscription.
var ErrFeedClosed = domain.NewError(domain.ErrCodeInternal, "task change feed closed")

// Snapshot is one delivery of a live query: the full ordered result set, or a
// terminal error after which no further snapshots arrive.
type Snapshot struct {
	Tasks []domain.Task
	Err   error
}

// Unsubscribe stops a live query. When it returns no further snapshot will be
// delivered and the feed connection is released. It is safe to call more than
// once but must not be called from inside the subscription's own callback.
type Unsubscribe func()

// Subscribe opens a live query over userID's tasks, ordered by creation time
// descending and narrowed by filter. onChange receives the initial result set
// and then the full set again after every change. Deliveries are serialized.
func (uc *UseCase) Subscribe(ctx context.Context, userID string, filter domain.PriorityFilter, onChange func(Snapshot)) (Unsubscribe, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if onChange == nil {
		return nil, domain.ErrInvalidPayload
	}
	if filter == "" {
		filter = domain.PriorityAll
	}
	if uc.feed == nil {
		return nil, errors.New("task change feed not configured")
	}

	stream, err := uc.feed.Watch(ctx, userID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		tasks:    uc.tasks,
		stream:   stream,
		userID:   userID,
		filter:   filter,
		onChange: onChange,
		logger:   uc.logger.With(zap.String("user_id", userID), zap.String("priority", string(filter))),
		ctx:      runCtx,
		cancel:   cancel,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go sub.run()

	uc.logger.Debug("task subscription opened", zap.String("user_id", userID), zap.String("priority", string(filter)))
	return sub.unsubscribe, nil
}

type subscription struct {
	tasks    repository.TaskRepository
	stream   repository.ChangeStream
	userID   string
	filter   domain.PriorityFilter
	onChange func(Snapshot)
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
}

func (s *subscription) run() {
	defer close(s.done)
	defer func() {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("close change stream failed", zap.Error(err))
		}
	}()

	if !s.deliver() {
		return
	}
	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-s.stream.Changes():
			if !ok {
				if !s.stopped() {
					s.logger.Warn("task change feed closed")
					s.onChange(Snapshot{Err: ErrFeedClosed})
				}
				return
			}
			if !s.deliver() {
				return
			}
		}
	}
}

// deliver re-runs the query and hands the result to onChange. It reports
// whether the subscription should keep running.
func (s *subscription) deliver() bool {
	tasks, err := s.tasks.List(s.ctx, s.userID, repository.TaskFilter{Priority: s.filter})
	if s.stopped() {
		return false
	}
	if err != nil {
		s.logger.Error("live task query failed", zap.Error(err))
		s.onChange(Snapshot{Err: err})
		return false
	}
	s.onChange(Snapshot{Tasks: tasks})
	return true
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *subscription) unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		s.cancel()
	})
	<-s.done
}
