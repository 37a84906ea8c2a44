// Package server holds the HTTP plumbing shared by the API binaries: the gin
// engine with its middleware, error mapping and the http.Server settings.
package server

import (
	"fmt"
	"net/http"
	"time"

	"socialgraph/internal/config"
)

// New wraps handler in an http.Server listening on port.
func New(port int, cfg config.HTTP, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
