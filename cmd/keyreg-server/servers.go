package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/alex65536/keyreg/internal/util/slogx"
	"golang.org/x/crypto/acme/autocert"
)

const shutdownTimeout = 10 * time.Second

type servers struct {
	insecure *http.Server
	secure   *http.Server
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   func()
	log      *slog.Logger
}

func newServers(parentCtx context.Context, log *slog.Logger, o *Options, h http.Handler) (*servers, error) {
	if o.HTTPS != nil {
		if o.HTTPS.CachePath == "" {
			return nil, fmt.Errorf("certificate cache path not specified")
		}
		if len(o.HTTPS.AllowedSecureDomains) == 0 {
			return nil, fmt.Errorf("no secure domains allowed")
		}
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s := &servers{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	baseCtx := func(net.Listener) context.Context { return ctx }
	if o.HTTPS == nil || o.HTTPS.ExposeInsecure {
		s.insecure = &http.Server{
			Addr:              o.AddrWithPort(),
			Handler:           h,
			BaseContext:       baseCtx,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	if o.HTTPS != nil {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(slices.Clone(o.HTTPS.AllowedSecureDomains)...),
			Cache:      autocert.DirCache(o.HTTPS.CachePath),
		}
		s.secure = &http.Server{
			Addr:              o.SecureAddrWithPort(),
			TLSConfig:         m.TLSConfig(),
			Handler:           h,
			BaseContext:       baseCtx,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if s.insecure != nil {
			// Answer ACME http-01 challenges on the plain listener too.
			s.insecure.Handler = m.HTTPHandler(h)
		}
	}
	return s, nil
}

func (s *servers) iterServers(f func(name string, serv *http.Server)) {
	if s.insecure != nil {
		f("insecure", s.insecure)
	}
	if s.secure != nil {
		f("secure", s.secure)
	}
}

func (s *servers) Go() {
	s.iterServers(func(name string, serv *http.Server) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log := s.log.With(slog.String("name", name), slog.String("addr", serv.Addr))
			log.Info("starting http server")
			var err error
			if name == "secure" {
				err = serv.ListenAndServeTLS("", "")
			} else {
				err = serv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				select {
				case <-s.ctx.Done():
				default:
					log.Error("listen http server failed", slogx.Err(err))
				}
			}
		}()
	})
}

func (s *servers) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.iterServers(func(name string, serv *http.Server) {
		log := s.log.With(slog.String("name", name))
		log.Info("stopping http server")
		if err := serv.Shutdown(ctx); err != nil {
			log.Warn("could not shut down server", slogx.Err(err))
		}
	})
	s.cancel()
	s.wg.Wait()
}
