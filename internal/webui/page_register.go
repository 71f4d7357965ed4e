package webui

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/gorilla/csrf"
)

type registerDataBuilder struct{}

func (registerDataBuilder) Build(_ context.Context, bc builderCtx) (any, error) {
	type data struct {
		CSRFField      template.HTML
		CSRFToken      string
		MinLen         int
		MaxLen         int
		LengthMessage  string
		CharsetMessage string
	}

	return &data{
		CSRFField:      csrf.TemplateField(bc.Req),
		CSRFToken:      csrf.Token(bc.Req),
		MinLen:         userauth.MinUsernameLen,
		MaxLen:         userauth.MaxUsernameLen,
		LengthMessage:  userauth.LengthMessage,
		CharsetMessage: userauth.CharsetMessage,
	}, nil
}

func registerPage(log *slog.Logger, cfg *Config, templ *templator) (http.Handler, error) {
	return newPage(log, cfg, templ, registerDataBuilder{}, "register")
}
