package usecase

import (
	"context"
	"time"

	"storefront/internal/notify"
)

// 注文単位の排他（Redis or プロセス内）
type Locker interface {
	// okがfalseなら他で処理中
	TryLock(ctx context.Context, scope, key string) (release func(), ok bool, err error)
}

// 通知の投入口。結果は待たない。
type Notifier interface {
	Notify(ev notify.Event) notify.Outcome
}

type Clock func() time.Time

type IDGenerator func() string
