package webui

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alex65536/keyreg/internal/util/httputil"
)

type handlerKind int

const (
	kindPage handlerKind = iota
	kindAPI
	kindStatic
)

func (k handlerKind) String() string {
	switch k {
	case kindPage:
		return "page"
	case kindAPI:
		return "api"
	case kindStatic:
		return "static"
	default:
		panic("must not happen")
	}
}

type middlewareBuilder struct {
	Log         *slog.Logger
	CSRFProtect func(http.Handler) http.Handler
	Compress    func(http.Handler) http.Handler
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type middleware struct {
	b    *middlewareBuilder
	h    http.Handler
	kind handlerKind
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	req = httputil.WrapRequest(w, req)
	log := m.b.Log.With(
		slog.String("rid", httputil.ExtractReqID(req.Context())),
		slog.String("kind", m.kind.String()),
	)

	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	switch m.kind {
	case kindPage:
		h.Set("Cache-Control", "no-store")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
	case kindAPI:
		h.Set("Cache-Control", "no-store")
	case kindStatic:
		h.Set("Cache-Control", "max-age=86400, public")
	}

	sw := &statusWriter{ResponseWriter: w}
	m.h.ServeHTTP(sw, req)
	log.Info("handle request",
		slog.String("method", req.Method),
		slog.String("uri", req.RequestURI),
		slog.String("addr", req.RemoteAddr),
		slog.Int("code", sw.code),
		slog.Duration("took", time.Since(start)),
	)
}

func (b *middlewareBuilder) wrap(h http.Handler, kind handlerKind) http.Handler {
	if kind != kindStatic {
		h = b.CSRFProtect(h)
	}
	h = &middleware{b: b, h: h, kind: kind}
	return b.Compress(h)
}

func (b *middlewareBuilder) WrapPage(h http.Handler) http.Handler {
	return b.wrap(h, kindPage)
}

func (b *middlewareBuilder) WrapAPI(h http.Handler) http.Handler {
	return b.wrap(h, kindAPI)
}

func (b *middlewareBuilder) WrapStatic(h http.Handler) http.Handler {
	return b.wrap(h, kindStatic)
}
