package webui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/util/httputil"
	"github.com/alex65536/keyreg/internal/util/slogx"
)

type apiCtx struct {
	Log    *slog.Logger
	Config *Config
	Req    *http.Request
	Writer http.ResponseWriter
}

// apiFunc returns the status code and the JSON body. A returned *httputil.Error is rendered as a
// JSON error body with its code; any other error becomes 500.
type apiFunc func(ctx context.Context, ac apiCtx) (int, any, error)

type apiHandler struct {
	name    string
	cfg     *Config
	log     *slog.Logger
	methods []string
	f       apiFunc
}

func newAPI(log *slog.Logger, cfg *Config, name string, f apiFunc, methods ...string) http.Handler {
	return &apiHandler{
		name:    name,
		cfg:     cfg,
		log:     log.With(slog.String("api", name)),
		methods: methods,
		f:       f,
	}
}

func (h *apiHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := h.log.With(slog.String("rid", httputil.ExtractReqID(ctx)))

	if !slices.Contains(h.methods, req.Method) {
		log.Warn("method not allowed", slog.String("method", req.Method))
		w.Header().Set("Allow", strings.Join(h.methods, ", "))
		writeJSON(log, w, http.StatusMethodNotAllowed, regapi.Error{Message: "method not allowed"})
		return
	}

	code, body, err := h.f(ctx, apiCtx{
		Log:    log,
		Config: h.cfg,
		Req:    req,
		Writer: w,
	})
	if err != nil {
		if httpErr := (*httputil.Error)(nil); errors.As(err, &httpErr) {
			log.Info("send api error",
				slog.Int("code", httpErr.Code()),
				slog.String("msg", httpErr.Message()),
			)
			httpErr.ApplyHeaders(w)
			writeJSON(log, w, httpErr.Code(), regapi.Error{Message: httpErr.Message()})
			return
		}
		log.Error("api request failed", slogx.Err(err))
		writeJSON(log, w, http.StatusInternalServerError, regapi.Error{Message: "internal server error"})
		return
	}
	writeJSON(log, w, code, body)
}
