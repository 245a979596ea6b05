package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

const genericErrMessage = "internal server error"

// Err defines an error type that can be enriched with a http status code.
type Err struct {
	Message string
	Status  int
}

// Error implements the std error type.
func (e *Err) Error() string {
	return fmt.Sprintf("Error Code: %d Message: %s", e.Status, e.Message)
}

func NewErrf(status int, msg string, a ...any) *Err {
	return &Err{
		Message: fmt.Sprintf(msg, a...),
		Status:  status,
	}
}

// Func is an endpoint that writes its own successful response and returns any failure instead.
type Func func(w http.ResponseWriter, r *http.Request) error

type Mux interface {
	HandleFunc(pattern string, f func(w http.ResponseWriter, r *http.Request))
}

func RegisterFunc(logger *logrus.Logger, mux Mux, method, endpoint string, f Func) {
	pattern := fmt.Sprintf("%s %s", method, endpoint)
	mux.HandleFunc(pattern, FuncAdapter(logger, f))
}

// FuncAdapter accepts a server Func and returns a http.HandlerFunc that can be used for API endpoint registration.
// An *Err is written with its status and message. Any other error is logged and answered with a generic 500 so
// that paths and internal details never reach the client.
func FuncAdapter(log *logrus.Logger, f Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithContext(r.Context()).WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"pattern": r.Pattern,
		})
		logger.Debug("Handling request in FuncAdapter")

		err := f(w, r)
		if err == nil {
			return
		}

		var stErr *Err
		if !errors.As(err, &stErr) {
			logger.WithError(err).Error("Request failed with an unexpected error")
			stErr = &Err{
				Message: genericErrMessage,
				Status:  http.StatusInternalServerError,
			}
		}
		http.Error(w, stErr.Message, stErr.Status)
	}
}
