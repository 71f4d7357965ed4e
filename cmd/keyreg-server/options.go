package main

import (
	"fmt"
	"net"

	"github.com/alex65536/keyreg/internal/database"
	"github.com/alex65536/keyreg/internal/passkey"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/idgen"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/alex65536/keyreg/internal/webui"
)

type HTTPSOptions struct {
	Port                 uint16   `toml:"port"`
	CachePath            string   `toml:"cache-path"`
	AllowedSecureDomains []string `toml:"allowed-secure-domains"`
	ExposeInsecure       bool     `toml:"expose-insecure"`
}

type Options struct {
	Host         string                            `toml:"host"`
	Port         uint16                            `toml:"port"`
	HTTPS        *HTTPSOptions                     `toml:"https"`
	Log          slogx.Options                     `toml:"log"`
	DB           database.Options                  `toml:"db"`
	Users        userauth.ManagerOptions           `toml:"users"`
	Availability userauth.AvailabilityCacheOptions `toml:"availability"`
	Passkey      passkey.Options                   `toml:"passkey"`
	WebUI        webui.Options                     `toml:"webui"`
}

func (o *Options) FillDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = 8080
	}
	if o.HTTPS != nil && o.HTTPS.Port == 0 {
		o.HTTPS.Port = 443
	}
	o.Log.FillDefaults()
	o.DB.FillDefaults()
	o.Users.FillDefaults()
	o.Availability.FillDefaults()
	o.Passkey.FillDefaults()
	o.WebUI.FillDefaults()
	if o.HTTPS != nil {
		o.WebUI.Session.Secure = true
	}
}

func (o *Options) AddrWithPort() string {
	return net.JoinHostPort(o.Host, fmt.Sprint(o.Port))
}

func (o *Options) SecureAddrWithPort() string {
	return net.JoinHostPort(o.Host, fmt.Sprint(o.HTTPS.Port))
}

func (o *Options) MixSecrets(s *Secrets) error {
	sessionKey, err := idgen.DecodeKey(s.SessionKey)
	if err != nil {
		return fmt.Errorf("decode session key: %w", err)
	}
	sessionEncKey, err := idgen.DecodeKey(s.SessionEncryptionKey)
	if err != nil {
		return fmt.Errorf("decode session encryption key: %w", err)
	}
	csrfKey, err := idgen.DecodeKey(s.CSRFKey)
	if err != nil {
		return fmt.Errorf("decode csrf key: %w", err)
	}
	o.WebUI.Session.AuthKey = sessionKey
	o.WebUI.Session.EncryptionKey = sessionEncKey
	o.WebUI.CSRFKey = csrfKey
	return nil
}
