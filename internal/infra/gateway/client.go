package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/gateway"
)

// レスポンスは1MBまで読む
const maxResponseBytes = 1 << 20

// プロバイダAPI共通のHTTPクライアント。Basic認証のユーザー名に秘密鍵を入れる。
type apiClient struct {
	http   *http.Client
	secret string
}

func newAPIClient(secret string, timeout time.Duration) apiClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return apiClient{
		http:   &http.Client{Timeout: timeout},
		secret: secret,
	}
}

// doJSON は通信失敗/5xxをErrProviderUnavailable、4xxをErrProviderRejectedにする
func (c apiClient) doJSON(ctx context.Context, method, url string, header http.Header, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.secret, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", gateway.ErrProviderUnavailable, method, url, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", gateway.ErrProviderUnavailable, err)
	}

	switch {
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", gateway.ErrProviderUnavailable, res.StatusCode, snippet(raw))
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", gateway.ErrProviderRejected, res.StatusCode, snippet(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", gateway.ErrMalformedPayload, err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}
