package webui

import (
	"log/slog"
	"net/http"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/util/httputil"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/gorilla/csrf"
)

func writeHTTPErr(log *slog.Logger, w http.ResponseWriter, err error) {
	if err = httputil.WriteErrorResponse(err, w); err != nil {
		log.Info("error writing error response", slogx.Err(err))
	}
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, code int, v any) {
	if err := httputil.WriteJSON(w, code, v); err != nil {
		log.Error("error writing json response", slogx.Err(err))
	}
}

func csrfFailure(w http.ResponseWriter, req *http.Request) {
	msg := "forbidden"
	if err := csrf.FailureReason(req); err != nil {
		msg = err.Error()
	}
	_ = httputil.WriteJSON(w, http.StatusForbidden, regapi.Error{Kind: "csrf", Message: msg})
}
