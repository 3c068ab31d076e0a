package lock

import (
	"context"
	"sync"
)

// プロセス内のロック（Redisが無い構成/テスト用）
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

func (l *MemoryLocker) TryLock(_ context.Context, scope, key string) (func(), bool, error) {
	k := scope + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[k]; ok {
		return func() {}, false, nil
	}
	l.held[k] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, k)
			l.mu.Unlock()
		})
	}, true, nil
}
