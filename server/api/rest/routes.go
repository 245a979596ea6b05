package rest

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// ReservedIDs are the single-segment GET paths served by fixed routes. Minted ids must avoid them
// or GET /{id} would never reach the object.
var ReservedIDs = []string{"healthz", "metrics"}

// RegisterRoutes wires the upload and download endpoints onto mux.
func RegisterRoutes(logger *logrus.Logger, mux Mux, uploads *UploadServer, files *FileServer) {
	RegisterFunc(logger, mux, http.MethodPut, "/{filename}", uploads.UploadDurable)
	RegisterFunc(logger, mux, http.MethodPut, "/d/{filename}", uploads.UploadDisposable)
	RegisterFunc(logger, mux, http.MethodGet, "/{$}", files.Index)
	RegisterFunc(logger, mux, http.MethodGet, "/healthz", Healthz)
	RegisterFunc(logger, mux, http.MethodGet, "/{id}", files.Download)
	RegisterFunc(logger, mux, http.MethodGet, "/{id}/{filename}", files.Download)
}
