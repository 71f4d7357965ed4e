package webui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alex65536/keyreg/internal/util/httputil"
	"github.com/alex65536/keyreg/internal/util/slogx"
)

type dataBuilder interface {
	Build(ctx context.Context, bc builderCtx) (any, error)
}

type page struct {
	name    string
	cfg     *Config
	log     *slog.Logger
	b       dataBuilder
	tmpl    *template.Template
	errTmpl *template.Template
}

type pageData struct {
	Data any
}

type builderCtx struct {
	Log    *slog.Logger
	Config *Config
	Req    *http.Request
}

func (p *page) renderError(log *slog.Logger, w http.ResponseWriter, httpErr *httputil.Error) {
	log.Info("send http status error",
		slog.Int("code", httpErr.Code()),
		slog.String("msg", httpErr.Message()),
	)
	var b bytes.Buffer
	if err := p.errTmpl.ExecuteTemplate(&b, "base", pageData{
		Data: struct {
			Code    int
			Message string
		}{
			Code:    httpErr.Code(),
			Message: httpErr.Message(),
		},
	}); err != nil {
		log.Error("error rendering page", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	httpErr.ApplyHeaders(w)
	w.WriteHeader(httpErr.Code())
	if _, err := w.Write(b.Bytes()); err != nil {
		log.Error("error writing page data", slogx.Err(err))
		return
	}
}

func (p *page) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := p.log.With(slog.String("rid", httputil.ExtractReqID(ctx)))

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		log.Warn("method not allowed", slog.String("method", req.Method))
		writeHTTPErr(log, w, httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed"))
		return
	}

	data, err := p.b.Build(ctx, builderCtx{
		Log:    log,
		Config: p.cfg,
		Req:    req,
	})
	if err != nil {
		if httpErr := (*httputil.Error)(nil); errors.As(err, &httpErr) {
			p.renderError(log, w, httpErr)
			return
		}
		log.Error("error building page data", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("build page"))
		return
	}

	var b bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&b, "base", pageData{Data: data}); err != nil {
		log.Error("error rendering page", slogx.Err(err))
		writeHTTPErr(log, w, fmt.Errorf("render page"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b.Bytes()); err != nil {
		log.Error("error writing page data", slogx.Err(err))
		return
	}
}

func newPage(
	log *slog.Logger,
	cfg *Config,
	templator *templator,
	builder dataBuilder,
	name string,
) (http.Handler, error) {
	tmpl, err := templator.Get(name)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	errTmpl, err := templator.Get("error")
	if err != nil {
		return nil, fmt.Errorf("template \"error\": %w", err)
	}
	return &page{
		name:    name,
		cfg:     cfg,
		log:     log.With(slog.String("page", name)),
		b:       builder,
		tmpl:    tmpl,
		errTmpl: errTmpl,
	}, nil
}
