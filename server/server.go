package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Server struct {
	HTTP *http.Server
}

// NewServer は ctx をすべてのリクエストのベースにする HTTP サーバーを作ります。
// ctx が終わると受け付け済みの WebSocket セッションもシャットダウンとして閉じます。
func NewServer(ctx context.Context, addr string, handler http.Handler) *Server {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return &Server{
		HTTP: httpServer,
	}
}

// Serve は Shutdown されるまでブロックします。Shutdown による終了は nil です。
func (s *Server) Serve() error {
	if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.HTTP.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.HTTP.Close() }
func (s *Server) Addr() string                       { return s.HTTP.Addr }
