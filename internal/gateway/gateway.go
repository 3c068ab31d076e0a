// Package gateway は決済プロバイダ（Midtrans / Xendit）の共通の窓口。
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/model"
)

var (
	// 署名/トークンの検証に失敗したコールバック。状態は一切変えない。
	ErrUntrustedCallback = errors.New("untrusted callback")
	// 読めないペイロード
	ErrMalformedPayload = errors.New("malformed payload")
	// 通信失敗・タイムアウト・5xx（リトライ可能）
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// 4xx（リクエスト自体が拒否された）
	ErrProviderRejected = errors.New("payment provider rejected request")
)

// プロバイダ側で作られた取引
type CreatedTransaction struct {
	TransactionRef string // 注文IDから導出した参照
	InvoiceID      string // Xenditの請求書ID（Midtransは空）
	RedirectURL    string
	Token          string // Snap token（Xenditは空）
	ExpiresAt      *time.Time
}

// プロバイダが報告した時点のステータス
type Snapshot struct {
	ProviderRef    string
	InvoiceID      string
	TransactionID  string
	RawStatus      string
	FraudStatus    string
	PaymentMethod  string
	PaymentChannel string
	PaidAt         *time.Time
}

type Gateway interface {
	// midtrans / xendit（webhookのパスにも使う）
	Name() string

	// 同じ注文で何度呼んでもプロバイダ側で取引が重複しないよう、参照は注文IDから導出する
	CreateTransaction(ctx context.Context, order model.Order) (CreatedTransaction, error)

	// refはPayment.LookupRef()
	QueryStatus(ctx context.Context, ref string) (Snapshot, error)

	// 真正性を検証してから中身を読む。失敗はErrUntrustedCallback。
	InterpretCallback(ctx context.Context, body []byte, header http.Header) (Snapshot, error)
}
