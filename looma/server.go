package looma

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/looma/looma/internal/server"
)

// Server is the HTTP control API and websocket update stream.
type Server = server.Server

// NewServer builds the control API for s and registers its websocket hub
// as a session sink.
func NewServer(s *Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = s.logger
	}
	srv := server.New(server.Config{
		Service:  s,
		Logger:   logger,
		StatusOf: httpStatus,
	})
	s.AddSink(srv.Hub())
	return srv
}

func httpStatus(err error) int {
	var initFailed *ErrInitFailed
	switch {
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrCannotNavigate):
		return http.StatusNotImplemented
	case errors.As(err, &initFailed):
		return http.StatusBadGateway
	}
	return 0
}
