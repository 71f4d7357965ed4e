package slogx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Options struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

func (o *Options) FillDefaults() {
	if o.Level == "" {
		o.Level = "info"
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("bad log level %q", s)
	}
	return l, nil
}

func New(w io.Writer, o Options) (*slog.Logger, error) {
	o.FillDefaults()
	level, err := parseLevel(o.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: level}
	if o.JSON {
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	}
	return slog.New(slog.NewTextHandler(w, ho)), nil
}

type discardHandler struct{}

func IsDiscard(l *slog.Logger) bool {
	_, ok := l.Handler().(discardHandler)
	return ok
}

func DiscardLogger() *slog.Logger {
	return slog.New(Discard())
}

// Discard() is adapted from https://go-review.googlesource.com/c/go/+/547956. Hopefully it will
// eventually land into stable and we'll be able to remove this.
func Discard() slog.Handler {
	return discardHandler{}
}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

func Err(err error) slog.Attr {
	return slog.String("err", err.Error())
}
