package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestXendit(url string) *Xendit {
	return NewXendit(XenditConfig{
		SecretKey:     "xnd_development_key",
		CallbackToken: "cb-token",
		APIURL:        url,
		BaseURL:       "https://shop.example.com/",
		Duration:      24 * time.Hour,
		Timeout:       time.Second,
	})
}

func TestXendit_CreateTransaction(t *testing.T) {
	var got invoiceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		assert.Equal(t, "checkout-o-1", r.Header.Get("X-IDEMPOTENCY-KEY"))
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "xnd_development_key", user)

		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))

		_, _ = w.Write([]byte(`{"id":"inv-1","external_id":"checkout-o-1","invoice_url":"https://checkout.xendit.co/web/inv-1","status":"PENDING","amount":25000,"expiry_date":"2026-03-02T10:00:00.000Z"}`))
	}))
	defer srv.Close()

	tx, err := newTestXendit(srv.URL).CreateTransaction(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, "checkout-o-1", tx.TransactionRef)
	assert.Equal(t, "inv-1", tx.InvoiceID)
	assert.Equal(t, "https://checkout.xendit.co/web/inv-1", tx.RedirectURL)
	require.NotNil(t, tx.ExpiresAt)

	assert.Equal(t, "checkout-o-1", got.ExternalID)
	assert.Equal(t, int64(86400), got.InvoiceDuration)
	assert.Equal(t, "IDR", got.Currency)
	assert.Equal(t, "https://shop.example.com/payment/success?checkoutId=o-1", got.SuccessRedirectURL)
	assert.Equal(t, "Guest", got.Customer.GivenNames)
}

func TestXendit_QueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoices/inv-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"inv-1","external_id":"checkout-o-1","status":"SETTLED","paid_at":"2026-03-01T03:00:00.000Z","payment_method":"BANK_TRANSFER","payment_channel":"BCA"}`))
	}))
	defer srv.Close()

	snap, err := newTestXendit(srv.URL).QueryStatus(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", snap.InvoiceID)
	assert.Equal(t, "BCA", snap.PaymentChannel)
	require.NotNil(t, snap.PaidAt)
	assert.Equal(t, model.PaymentStatusPaid, gateway.MapStatus(snap))
}

func TestXendit_QueryStatus_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestXendit(srv.URL).QueryStatus(context.Background(), "inv-1")
	assert.ErrorIs(t, err, gateway.ErrProviderUnavailable)
}

func TestXendit_InterpretCallback(t *testing.T) {
	x := newTestXendit("http://unused")
	body := []byte(`{"id":"inv-1","external_id":"checkout-o-1","status":"EXPIRED"}`)

	h := http.Header{}
	h.Set("x-callback-token", "cb-token")
	snap, err := x.InterpretCallback(context.Background(), body, h)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", snap.InvoiceID)
	assert.Equal(t, model.PaymentStatusExpired, gateway.MapStatus(snap))

	bad := http.Header{}
	bad.Set("x-callback-token", "wrong")
	_, err = x.InterpretCallback(context.Background(), body, bad)
	assert.ErrorIs(t, err, gateway.ErrUntrustedCallback)

	_, err = x.InterpretCallback(context.Background(), body, http.Header{})
	assert.ErrorIs(t, err, gateway.ErrUntrustedCallback)

	_, err = x.InterpretCallback(context.Background(), []byte(`{"status":""}`), h)
	assert.ErrorIs(t, err, gateway.ErrMalformedPayload)
}
