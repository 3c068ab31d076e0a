package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ユニーク制約違反（同じプロバイダ参照・同じ注文のPENDING決済など）
	ErrDuplicate = errors.New("duplicate record")

	// 終端ステータスから別の終端ステータスへの遷移。最初に書いた方が勝つ。
	ErrConflictingStatusTransition = errors.New("conflicting status transition")

	// PENDINGへの遷移など、状態機械に無い辺
	ErrInvalidTransition = errors.New("invalid status transition")
)
