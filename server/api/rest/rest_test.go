package rest_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/hedisam/tmpdrop/server/api/rest"
)

func TestFuncAdapter(t *testing.T) {
	tests := map[string]struct {
		handlerErr      error
		expectedStatus  int
		expectedRespStr string
	}{
		"Success": {
			expectedStatus:  http.StatusOK,
			expectedRespStr: "done",
		},
		"StatusError": {
			handlerErr:      rest.NewErrf(http.StatusUnprocessableEntity, "invalid %s", "request"),
			expectedStatus:  http.StatusUnprocessableEntity,
			expectedRespStr: "invalid request",
		},
		"WrappedStatusError": {
			handlerErr:      fmt.Errorf("upload: %w", rest.NewErrf(http.StatusRequestEntityTooLarge, "too large")),
			expectedStatus:  http.StatusRequestEntityTooLarge,
			expectedRespStr: "too large",
		},
		"GenericError": {
			handlerErr:      errors.New("open /srv/data/abc: permission denied"),
			expectedStatus:  http.StatusInternalServerError,
			expectedRespStr: "internal server error",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := func(w http.ResponseWriter, r *http.Request) error {
				if tc.handlerErr != nil {
					return tc.handlerErr
				}
				_, _ = w.Write([]byte("done"))
				return nil
			}
			handler := rest.FuncAdapter(logrus.New(), f)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil))

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedRespStr, strings.TrimSpace(rr.Body.String()))
			assert.NotContains(t, rr.Body.String(), "/srv/data")
		})
	}
}

func TestRegisterFunc(t *testing.T) {
	mux := http.NewServeMux()
	rest.RegisterFunc(logrus.New(), mux, http.MethodGet, "/items/{id}", func(w http.ResponseWriter, r *http.Request) error {
		_, _ = w.Write([]byte(r.PathValue("id")))
		return nil
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/items/abc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
