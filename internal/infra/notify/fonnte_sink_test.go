package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFonnteSink_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fonnte-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "08123", r.PostForm.Get("target"))
		assert.Equal(t, "halo", r.PostForm.Get("message"))
		assert.Equal(t, "62", r.PostForm.Get("countryCode"))
		_, _ = w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	s := NewFonnteSink(srv.URL, "fonnte-token", time.Second)
	assert.NoError(t, s.Send(context.Background(), "08123", "halo"))
}

func TestFonnteSink_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"reason":"invalid token"}`))
	}))
	defer srv.Close()

	err := NewFonnteSink(srv.URL, "bad", time.Second).Send(context.Background(), "08123", "halo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}
