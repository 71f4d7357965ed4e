package webui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/alex65536/keyreg/internal/passkey"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/idgen"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"golang.org/x/time/rate"
)

type Config struct {
	UserManager         *userauth.Manager
	Registrar           *passkey.Registrar
	Availability        *userauth.AvailabilityCache
	SessionStoreFactory SessionStoreFactory

	prefix          string
	opts            *Options
	sessionStore    sessions.Store
	registerLimiter *rate.Limiter
}

type Options struct {
	ServerID         string         `toml:"-"`
	CSRFKey          []byte         `toml:"-"`
	Session          SessionOptions `toml:"session"`
	RegisterRPSLimit float64        `toml:"register-rps-limit"`
	RegisterRPSBurst int            `toml:"register-rps-burst"`
}

func (o *Options) FillDefaults() {
	if o.ServerID == "" {
		o.ServerID = idgen.ID()
	}
	o.Session.FillDefaults()
	if o.RegisterRPSLimit == 0.0 {
		o.RegisterRPSLimit = 5
	}
	if o.RegisterRPSBurst == 0 {
		o.RegisterRPSBurst = 20
	}
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}

func Handle(ctx context.Context, log *slog.Logger, mux *http.ServeMux, prefix string, cfg Config, o Options) error {
	if len(o.CSRFKey) != 32 {
		return fmt.Errorf("csrf key must be 32 bytes long, got %v", len(o.CSRFKey))
	}
	b := middlewareBuilder{
		Log: log,
		CSRFProtect: csrf.Protect(
			o.CSRFKey,
			csrf.Secure(o.Session.Secure),
			csrf.Path(prefix+"/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		),
		Compress: gziphandler.GzipHandler,
	}
	handle(ctx, log, mux, prefix, cfg, o, &b)
	return nil
}

func handle(
	ctx context.Context,
	log *slog.Logger,
	mux *http.ServeMux,
	prefix string,
	cfg Config,
	o Options,
	b *middlewareBuilder,
) {
	o.FillDefaults()

	cfg.prefix = prefix
	cfg.opts = &o
	cfg.sessionStore = cfg.SessionStoreFactory.NewSessionStore(ctx, o.Session)
	cfg.registerLimiter = rate.NewLimiter(rate.Limit(o.RegisterRPSLimit), o.RegisterRPSBurst)
	templ := newTemplator(&cfg)

	mux.Handle(prefix+"/css/", b.WrapStatic(http.StripPrefix(prefix, http.FileServerFS(staticData))))
	mux.Handle(prefix+"/js/", b.WrapStatic(http.StripPrefix(prefix, http.FileServerFS(staticData))))
	mux.Handle(prefix+"/{$}", b.WrapPage(must(registerPage(log, &cfg, templ))))
	mux.Handle(prefix+"/api/register/begin", b.WrapAPI(registerBeginAPI(log, &cfg)))
	mux.Handle(prefix+"/api/register/finish", b.WrapAPI(registerFinishAPI(log, &cfg)))
	mux.Handle(prefix+"/api/names/{name}", b.WrapAPI(namesAPI(log, &cfg)))
	mux.Handle(prefix+"/api/users/{name}/credentials", b.WrapAPI(credentialsAPI(log, &cfg)))
	mux.Handle(prefix+"/healthz", b.WrapAPI(http.HandlerFunc(healthHandler)))
	mux.Handle(prefix+"/", b.WrapPage(must(e404Page(log, &cfg, templ))))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
