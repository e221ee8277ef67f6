package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "hunter-compare/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><article class="card">%s</article></body></html>`, r.URL.Query().Get("q"))
	}))
	defer ts.Close()

	factory, err := NewFactory("static", Options{NavigationTimeout: 5 * time.Second})
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := factory.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.HTML(ctx)
	assert.Error(t, err, "no page loaded yet")

	require.NoError(t, sess.Navigate(ctx, ts.URL+"/?q=milk"))
	html, err := sess.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "milk")

	assert.NoError(t, sess.WaitReady(ctx, "article.card", time.Second))
	err = sess.WaitReady(ctx, "div.missing", time.Second)
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))

	assert.NoError(t, sess.ScrollToBottom(ctx))

	// Revisiting the same URL is allowed.
	require.NoError(t, sess.Navigate(ctx, ts.URL+"/?q=milk"))

	err = sess.Navigate(ctx, ts.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeNetwork, apperrors.TypeOf(err))
}

func TestNewFactoryUnknownMode(t *testing.T) {
	_, err := NewFactory("firefox", Options{})
	assert.Error(t, err)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
