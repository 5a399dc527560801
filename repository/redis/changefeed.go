package redis

import (
	"context"
	"sync"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/repository"
)

type changeFeed struct {
	client *redislib.Client
	prefix string
}

// NewChangeFeed fans task changes out over Redis pub/sub so that every
// instance behind the load balancer sees writes made by any other.
func NewChangeFeed(client *redislib.Client) repository.ChangeFeed {
	return &changeFeed{client: client, prefix: "tasks:changed:"}
}

func (f *changeFeed) Publish(ctx context.Context, userID string) error {
	return f.client.Publish(ctx, f.channel(userID), "1").Err()
}

func (f *changeFeed) Watch(ctx context.Context, userID string) (repository.ChangeStream, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(userID))
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	stream := &changeStream{
		pubsub:  pubsub,
		changes: make(chan struct{}, 1),
	}
	go stream.forward(pubsub.Channel())
	return stream, nil
}

func (f *changeFeed) channel(userID string) string {
	return f.prefix + userID
}

type changeStream struct {
	pubsub  *redislib.PubSub
	changes chan struct{}
	once    sync.Once
	err     error
}

func (s *changeStream) Changes() <-chan struct{} {
	return s.changes
}

func (s *changeStream) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}

func (s *changeStream) forward(messages <-chan *redislib.Message) {
	defer close(s.changes)
	for range messages {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	}
}
