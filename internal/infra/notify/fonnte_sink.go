package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/notify"
)

// Fonnte（WhatsApp送信API）
type FonnteSink struct {
	url    string
	token  string
	client *http.Client
}

func NewFonnteSink(endpoint, token string, timeout time.Duration) *FonnteSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FonnteSink{url: endpoint, token: token, client: &http.Client{Timeout: timeout}}
}

var _ notify.Sink = (*FonnteSink)(nil)

type fonnteResponse struct {
	Status bool   `json:"status"`
	Reason string `json:"reason"`
}

func (s *FonnteSink) Send(ctx context.Context, target, message string) error {
	form := url.Values{}
	form.Set("target", target)
	form.Set("message", message)
	form.Set("countryCode", "62")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("fonnte request: %w", err)
	}
	req.Header.Set("Authorization", s.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fonnte send: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode >= 300 {
		return fmt.Errorf("fonnte send: status %d", res.StatusCode)
	}

	//HTTP 200でもstatus=falseで失敗を返す
	var body fonnteResponse
	if err := json.Unmarshal(raw, &body); err == nil && !body.Status {
		return fmt.Errorf("fonnte send: %s", body.Reason)
	}
	return nil
}
