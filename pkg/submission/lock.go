package submission

import (
	"context"
	"sync"
)

// keyedMutex serializes work per key, different keys do not block each other
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	slot chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*keyedLock),
	}
}

// Lock blocks until key is free or ctx is done, the returned func releases the key
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{
			slot: make(chan struct{}, 1),
		}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	select {
	case lock.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.slot
				k.release(key, lock)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, lock)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key string, lock *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.locks)
}
