package rest_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tmpdrop/client/api/rest"
)

func newClient(t *testing.T, baseURL string) *rest.Client {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := rest.NewClient(logger, baseURL, rest.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}))
	require.NoError(t, err)
	return c
}

func TestUpload(t *testing.T) {
	tests := map[string]struct {
		filename   string
		disposable bool
		wantPath   string
	}{
		"durable": {
			filename: "cat.png",
			wantPath: "/cat.png",
		},
		"disposable": {
			filename:   "cat.png",
			disposable: true,
			wantPath:   "/d/cat.png",
		},
		"escaped": {
			filename: "my cat?.png",
			wantPath: "/my%20cat%3F.png",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, tc.wantPath, r.URL.EscapedPath())
				assert.Equal(t, int64(4), r.ContentLength)
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.Equal(t, "meow", string(body))
				_, _ = io.WriteString(w, "https://files.example.com/abc123/cat.png\n")
			}))
			t.Cleanup(srv.Close)

			got, err := newClient(t, srv.URL).Upload(t.Context(), tc.filename, []byte("meow"), tc.disposable)
			require.NoError(t, err)
			assert.Equal(t, "https://files.example.com/abc123/cat.png", got)
		})
	}
}

func TestUploadRetries(t *testing.T) {
	tests := map[string]struct {
		statuses  []int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		"recovers after unavailable": {
			statuses:  []int{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK},
			wantCalls: 3,
		},
		"gives up after retries": {
			statuses:  []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
			wantCalls: 3,
			wantErr:   true,
			wantCode:  http.StatusServiceUnavailable,
		},
		"client errors are not retried": {
			statuses:  []int{http.StatusRequestEntityTooLarge},
			wantCalls: 1,
			wantErr:   true,
			wantCode:  http.StatusRequestEntityTooLarge,
		},
		"server errors are not retried": {
			statuses:  []int{http.StatusInternalServerError},
			wantCalls: 1,
			wantErr:   true,
			wantCode:  http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				body, _ := io.ReadAll(r.Body)
				// every attempt carries the whole payload
				assert.Equal(t, "meow", string(body))
				status := tc.statuses[n-1]
				if status != http.StatusOK {
					http.Error(w, "nope", status)
					return
				}
				_, _ = io.WriteString(w, "https://files.example.com/abc123/a\n")
			}))
			t.Cleanup(srv.Close)

			got, err := newClient(t, srv.URL).Upload(t.Context(), "a", []byte("meow"), false)
			assert.Equal(t, tc.wantCalls, calls.Load())
			if !tc.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "https://files.example.com/abc123/a", got)
				return
			}
			var statusErr *rest.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.wantCode, statusErr.Status)
			assert.Equal(t, "nope", statusErr.Message)
		})
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc123" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "hello")
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL)
	got, err := c.Download(t.Context(), srv.URL+"/abc123")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = c.Download(t.Context(), srv.URL+"/zzz999")
	var statusErr *rest.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := rest.NewClient(logrus.New(), "ftp://example.com")
	require.Error(t, err)
}
