// Package server wraps the HTTP listener with production timeouts and
// graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// Server serves the webhook subscriber's HTTP surface, over TLS when a
// certificate pair is configured.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
}

// New creates a server for the given handler and port.
func New(handler http.Handler, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
	}
}

// Start begins serving in the background. The returned channel receives
// at most one error: a listener that failed for any reason other than
// Shutdown being called.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.tlsCert != "" && s.tlsKey != "" {
			s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return errCh
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
