// Package server exposes the Forge workspace over REST. It is the remote
// counterpart of store.HTTPStore: a browser client or another forge process
// pointed at this API sees the same projects, documents, tasks, and chat
// sessions as the local CLI.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/forgeproj/forge/store"
)

type Server struct {
	store     store.ProjectStore
	assistant store.AssistantClient
	token     string
	origins   map[string]struct{}
	server    *http.Server
}

// Options configures the API server.
type Options struct {
	Port int
	// Token, when non-empty, requires a matching bearer credential on
	// every request.
	Token string
	// AllowedOrigins lists origins granted CORS access.
	AllowedOrigins []string
}

func New(st store.ProjectStore, assistant store.AssistantClient, opts Options) *Server {
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[o] = struct{}{}
	}

	s := &Server{
		store:     st,
		assistant: assistant,
		token:     opts.Token,
		origins:   origins,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the server in a goroutine; errors other than a clean shutdown
// are sent to errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
