package auth

import (
	"sync"

	"github.com/fastygo/taskboard/domain"
)

// Identity holds the signed-in user of one client session and tells watchers
// when it changes.
type Identity struct {
	mu       sync.Mutex
	user     *domain.User
	next     int
	watchers map[int]func(*domain.User)
}

func NewIdentity(user *domain.User) *Identity {
	return &Identity{
		user:     user,
		watchers: make(map[int]func(*domain.User)),
	}
}

func (i *Identity) Current() *domain.User {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.user
}

func (i *Identity) SignIn(user *domain.User) {
	i.set(user)
}

func (i *Identity) SignOut() {
	i.set(nil)
}

// Watch calls fn with the current user right away and again on every change.
// The returned func stops the watch.
func (i *Identity) Watch(fn func(*domain.User)) func() {
	i.mu.Lock()
	id := i.next
	i.next++
	i.watchers[id] = fn
	user := i.user
	i.mu.Unlock()

	fn(user)

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.watchers, id)
			i.mu.Unlock()
		})
	}
}

func (i *Identity) set(user *domain.User) {
	i.mu.Lock()
	i.user = user
	watchers := make([]func(*domain.User), 0, len(i.watchers))
	for _, fn := range i.watchers {
		watchers = append(watchers, fn)
	}
	i.mu.Unlock()

	for _, fn := range watchers {
		fn(user)
	}
}
