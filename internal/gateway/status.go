package gateway

import (
	"strings"

	"storefront/internal/domain/model"
)

// MapStatus はプロバイダのステータスを正規のステータスに写す。
// 両プロバイダ共通。知らない値はPENDING（遷移しない）。
func MapStatus(s Snapshot) model.PaymentStatus {
	raw := strings.ToLower(strings.TrimSpace(s.RawStatus))
	fraud := strings.ToLower(strings.TrimSpace(s.FraudStatus))

	switch raw {
	case "capture":
		//カード決済はfraud判定がacceptのときだけ確定
		if fraud == "accept" {
			return model.PaymentStatusPaid
		}
		return model.PaymentStatusPending
	case "settlement", "paid", "settled":
		return model.PaymentStatusPaid
	case "expire", "expired":
		return model.PaymentStatusExpired
	case "cancel":
		return model.PaymentStatusCancelled
	case "deny":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}

// Midtransのorder_id
func MidtransOrderRef(orderID string) string {
	return "ORDER-" + orderID
}

// Xenditのexternal_id / X-IDEMPOTENCY-KEY
func IdempotencyKey(orderID string) string {
	return "checkout-" + orderID
}
