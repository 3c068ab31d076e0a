package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
)

// Midtransの時刻はWIB
var wib = time.FixedZone("WIB", 7*60*60)

const midtransTimeLayout = "2006-01-02 15:04:05"

type MidtransConfig struct {
	ServerKey string
	SnapURL   string // https://app.sandbox.midtrans.com
	APIURL    string // https://api.sandbox.midtrans.com
	BaseURL   string // 決済後の戻り先
	Expiry    time.Duration
	Timeout   time.Duration
}

// Snap（作成）とCore API（照会）を使うプッシュ確認型のプロバイダ
type Midtrans struct {
	cfg    MidtransConfig
	client apiClient
	now    func() time.Time
}

func NewMidtrans(cfg MidtransConfig) *Midtrans {
	cfg.SnapURL = strings.TrimRight(cfg.SnapURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Midtrans{
		cfg:    cfg,
		client: newAPIClient(cfg.ServerKey, cfg.Timeout),
		now:    time.Now,
	}
}

var _ gateway.Gateway = (*Midtrans)(nil)

func (m *Midtrans) Name() string { return "midtrans" }

type snapItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Category string `json:"category,omitempty"`
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []snapItem `json:"item_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email,omitempty"`
		Phone     string `json:"phone,omitempty"`
	} `json:"customer_details"`
	CreditCard struct {
		Secure bool `json:"secure"`
	} `json:"credit_card"`
	Callbacks struct {
		Finish string `json:"finish"`
	} `json:"callbacks"`
	Expiry *snapExpiry `json:"expiry,omitempty"`
}

type snapExpiry struct {
	Unit     string `json:"unit"`
	Duration int64  `json:"duration"`
}

type snapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

func (m *Midtrans) CreateTransaction(ctx context.Context, order model.Order) (gateway.CreatedTransaction, error) {
	ref := gateway.MidtransOrderRef(order.ID)

	var body snapRequest
	body.TransactionDetails.OrderID = ref
	body.TransactionDetails.GrossAmount = order.TotalAmount
	for _, it := range order.LineItems {
		id := it.ProductRef
		if id == "" {
			id = strings.Join(strings.Fields(strings.ToLower(it.Name)), "-")
		}
		body.ItemDetails = append(body.ItemDetails, snapItem{
			ID: id, Name: it.Name, Price: it.UnitPrice, Quantity: it.Quantity, Category: it.Category,
		})
	}
	body.CustomerDetails.FirstName = customerName(order.Customer.Name)
	body.CustomerDetails.Email = order.Customer.Email
	body.CustomerDetails.Phone = order.Customer.Phone
	body.CreditCard.Secure = true
	body.Callbacks.Finish = fmt.Sprintf("%s/success?orderId=%s", strings.TrimRight(m.cfg.BaseURL, "/"), url.QueryEscape(order.ID))

	var expiresAt *time.Time
	if m.cfg.Expiry > 0 {
		minutes := expiryMinutes(m.cfg.Expiry)
		body.Expiry = &snapExpiry{Unit: "minutes", Duration: minutes}
		at := m.now().Add(time.Duration(minutes) * time.Minute)
		expiresAt = &at
	}

	var res snapResponse
	if err := m.client.doJSON(ctx, http.MethodPost, m.cfg.SnapURL+"/snap/v1/transactions", nil, body, &res); err != nil {
		return gateway.CreatedTransaction{}, fmt.Errorf("midtrans create transaction: %w", err)
	}
	if res.Token == "" || res.RedirectURL == "" {
		return gateway.CreatedTransaction{}, fmt.Errorf("midtrans create transaction: %w: empty token", gateway.ErrMalformedPayload)
	}

	return gateway.CreatedTransaction{
		TransactionRef: ref,
		RedirectURL:    res.RedirectURL,
		Token:          res.Token,
		ExpiresAt:      expiresAt,
	}, nil
}

// Core API のステータス応答とHTTP通知は同じ形
type midtransStatus struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	SettlementTime    string `json:"settlement_time"`
	TransactionTime   string `json:"transaction_time"`
	VANumbers         []struct {
		Bank string `json:"bank"`
	} `json:"va_numbers"`
	PermataVANumber string `json:"permata_va_number"`
	Store           string `json:"store"`
	Issuer          string `json:"issuer"`
	Bank            string `json:"bank"`
}

func (s midtransStatus) channel() string {
	switch {
	case len(s.VANumbers) > 0:
		return s.VANumbers[0].Bank
	case s.PermataVANumber != "":
		return "permata"
	case s.Store != "":
		return s.Store
	case s.Issuer != "":
		return s.Issuer
	default:
		return s.Bank
	}
}

func (s midtransStatus) snapshot() gateway.Snapshot {
	snap := gateway.Snapshot{
		ProviderRef:    s.OrderID,
		TransactionID:  s.TransactionID,
		RawStatus:      s.TransactionStatus,
		FraudStatus:    s.FraudStatus,
		PaymentMethod:  s.PaymentType,
		PaymentChannel: s.channel(),
	}
	at := s.SettlementTime
	if at == "" && s.TransactionStatus == "capture" {
		at = s.TransactionTime
	}
	if at != "" {
		if t, err := time.ParseInLocation(midtransTimeLayout, at, wib); err == nil {
			snap.PaidAt = &t
		}
	}
	return snap
}

func (m *Midtrans) QueryStatus(ctx context.Context, ref string) (gateway.Snapshot, error) {
	var res midtransStatus
	u := fmt.Sprintf("%s/v2/%s/status", m.cfg.APIURL, url.PathEscape(ref))
	if err := m.client.doJSON(ctx, http.MethodGet, u, nil, nil, &res); err != nil {
		return gateway.Snapshot{}, fmt.Errorf("midtrans status: %w", err)
	}

	//Core APIはHTTP 200のままstatus_codeで失敗を返すことがある
	if strings.HasPrefix(res.StatusCode, "5") {
		return gateway.Snapshot{}, fmt.Errorf("midtrans status: %w: %s %s", gateway.ErrProviderUnavailable, res.StatusCode, res.StatusMessage)
	}
	if strings.HasPrefix(res.StatusCode, "4") {
		return gateway.Snapshot{}, fmt.Errorf("midtrans status: %w: %s %s", gateway.ErrProviderRejected, res.StatusCode, res.StatusMessage)
	}
	return res.snapshot(), nil
}

// Snapの期限は分単位。端数は切り上げる（0分にしない）。
func expiryMinutes(d time.Duration) int64 {
	m := int64(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// signature_key = SHA512(order_id + status_code + gross_amount + server_key)
func (m *Midtrans) Signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + m.cfg.ServerKey))
	return hex.EncodeToString(sum[:])
}

func (m *Midtrans) InterpretCallback(_ context.Context, body []byte, _ http.Header) (gateway.Snapshot, error) {
	var n midtransStatus
	if err := json.Unmarshal(body, &n); err != nil {
		return gateway.Snapshot{}, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if n.SignatureKey == "" {
		return gateway.Snapshot{}, fmt.Errorf("%w: missing signature_key", gateway.ErrUntrustedCallback)
	}

	want := m.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(n.SignatureKey)), []byte(want)) != 1 {
		return gateway.Snapshot{}, fmt.Errorf("%w: signature mismatch", gateway.ErrUntrustedCallback)
	}

	//署名が通ってから中身を見る
	if n.OrderID == "" || n.TransactionStatus == "" {
		return gateway.Snapshot{}, fmt.Errorf("%w: order_id and transaction_status are required", gateway.ErrMalformedPayload)
	}
	return n.snapshot(), nil
}

func customerName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Guest"
	}
	return name
}
