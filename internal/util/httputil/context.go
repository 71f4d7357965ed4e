package httputil

import (
	"context"
	"net/http"

	"github.com/alex65536/keyreg/internal/util/idgen"
)

const ReqIDHeader = "X-Request-Id"

type reqIDKey struct{}

func WrapRequestContext(parent context.Context) context.Context {
	return context.WithValue(parent, reqIDKey{}, idgen.ID())
}

// WrapRequest assigns a fresh request ID and echoes it back in the response headers.
func WrapRequest(w http.ResponseWriter, req *http.Request) *http.Request {
	req = req.WithContext(WrapRequestContext(req.Context()))
	w.Header().Set(ReqIDHeader, ExtractReqID(req.Context()))
	return req
}

func ExtractReqID(ctx context.Context) string {
	if s, ok := ctx.Value(reqIDKey{}).(string); ok {
		return s
	}
	return ""
}
