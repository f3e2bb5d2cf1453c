package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server is a start/stoppable transport frontend.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options carries the listener settings from process configuration.
type Options struct {
	Addr        string
	IdleTimeout time.Duration
}

type HTTPServer struct {
	handler http.Handler
	opts    Options
	srv     *http.Server
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, opts Options) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		opts:    opts,
	}
}

func (h *HTTPServer) Start(ctx context.Context) error {
	h.srv = &http.Server{
		Addr:    h.opts.Addr,
		Handler: h.handler,
		// Read/write timeouts stay unset: they would cut off long-lived
		// websocket and SSE connections.
		IdleTimeout: h.opts.IdleTimeout,
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := h.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}
