package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
)

type XenditConfig struct {
	SecretKey     string
	CallbackToken string
	APIURL        string // https://api.xendit.co
	BaseURL       string
	Duration      time.Duration
	Timeout       time.Duration
}

// 請求書（Invoice API）型のプロバイダ
type Xendit struct {
	cfg    XenditConfig
	client apiClient
}

func NewXendit(cfg XenditConfig) *Xendit {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Duration <= 0 {
		cfg.Duration = 24 * time.Hour
	}
	return &Xendit{cfg: cfg, client: newAPIClient(cfg.SecretKey, cfg.Timeout)}
}

var _ gateway.Gateway = (*Xendit)(nil)

func (x *Xendit) Name() string { return "xendit" }

type invoiceItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
	Category string `json:"category,omitempty"`
}

type invoiceRequest struct {
	ExternalID      string `json:"external_id"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description"`
	InvoiceDuration int64  `json:"invoice_duration"`
	Customer        struct {
		GivenNames   string `json:"given_names"`
		Email        string `json:"email,omitempty"`
		MobileNumber string `json:"mobile_number,omitempty"`
	} `json:"customer"`
	SuccessRedirectURL string        `json:"success_redirect_url"`
	FailureRedirectURL string        `json:"failure_redirect_url"`
	Currency           string        `json:"currency"`
	Items              []invoiceItem `json:"items"`
}

// 作成/照会/コールバックで共通の請求書表現
type invoice struct {
	ID             string     `json:"id"`
	ExternalID     string     `json:"external_id"`
	InvoiceURL     string     `json:"invoice_url"`
	Status         string     `json:"status"`
	Amount         float64    `json:"amount"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	PaidAt         *time.Time `json:"paid_at"`
	PaymentMethod  string     `json:"payment_method"`
	PaymentChannel string     `json:"payment_channel"`
}

func (inv invoice) snapshot() gateway.Snapshot {
	return gateway.Snapshot{
		ProviderRef:    inv.ExternalID,
		InvoiceID:      inv.ID,
		TransactionID:  inv.ID,
		RawStatus:      inv.Status,
		PaymentMethod:  inv.PaymentMethod,
		PaymentChannel: inv.PaymentChannel,
		PaidAt:         inv.PaidAt,
	}
}

func (x *Xendit) CreateTransaction(ctx context.Context, order model.Order) (gateway.CreatedTransaction, error) {
	key := gateway.IdempotencyKey(order.ID)
	base := strings.TrimRight(x.cfg.BaseURL, "/")

	body := invoiceRequest{
		ExternalID:         key,
		Amount:             order.TotalAmount,
		Description:        fmt.Sprintf("Payment for Order #%s", order.ID),
		InvoiceDuration:    int64(x.cfg.Duration / time.Second),
		SuccessRedirectURL: fmt.Sprintf("%s/payment/success?checkoutId=%s", base, url.QueryEscape(order.ID)),
		FailureRedirectURL: fmt.Sprintf("%s/payment/failed?checkoutId=%s", base, url.QueryEscape(order.ID)),
		Currency:           "IDR",
	}
	body.Customer.GivenNames = customerName(order.Customer.Name)
	body.Customer.Email = order.Customer.Email
	body.Customer.MobileNumber = order.Customer.Phone
	for _, it := range order.LineItems {
		body.Items = append(body.Items, invoiceItem{Name: it.Name, Quantity: it.Quantity, Price: it.UnitPrice, Category: it.Category})
	}

	//同じ注文の再試行でも請求書が重複しない
	h := http.Header{}
	h.Set("X-IDEMPOTENCY-KEY", key)

	var inv invoice
	if err := x.client.doJSON(ctx, http.MethodPost, x.cfg.APIURL+"/v2/invoices", h, body, &inv); err != nil {
		return gateway.CreatedTransaction{}, fmt.Errorf("xendit create invoice: %w", err)
	}
	if inv.ID == "" || inv.InvoiceURL == "" {
		return gateway.CreatedTransaction{}, fmt.Errorf("xendit create invoice: %w: empty invoice", gateway.ErrMalformedPayload)
	}

	return gateway.CreatedTransaction{
		TransactionRef: key,
		InvoiceID:      inv.ID,
		RedirectURL:    inv.InvoiceURL,
		ExpiresAt:      inv.ExpiryDate,
	}, nil
}

// refは請求書ID
func (x *Xendit) QueryStatus(ctx context.Context, ref string) (gateway.Snapshot, error) {
	var inv invoice
	u := fmt.Sprintf("%s/v2/invoices/%s", x.cfg.APIURL, url.PathEscape(ref))
	if err := x.client.doJSON(ctx, http.MethodGet, u, nil, nil, &inv); err != nil {
		return gateway.Snapshot{}, fmt.Errorf("xendit get invoice: %w", err)
	}
	return inv.snapshot(), nil
}

func (x *Xendit) InterpretCallback(_ context.Context, body []byte, header http.Header) (gateway.Snapshot, error) {
	token := header.Get("X-Callback-Token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(x.cfg.CallbackToken)) != 1 {
		return gateway.Snapshot{}, fmt.Errorf("%w: callback token mismatch", gateway.ErrUntrustedCallback)
	}

	var inv invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return gateway.Snapshot{}, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if (inv.ID == "" && inv.ExternalID == "") || inv.Status == "" {
		return gateway.Snapshot{}, fmt.Errorf("%w: id and status are required", gateway.ErrMalformedPayload)
	}
	return inv.snapshot(), nil
}
