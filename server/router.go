package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dogfight/server/handler"
)

// Route はワールドの HTTP ルートを組み立てます。staticDir が空なら静的配信はしません。
func Route(accept http.Handler, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", accept)
	mux.Handle("GET /healthz", handler.NewHealthHandler())
	if staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	}
	return otelhttp.NewHandler(mux, "dogfight",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
