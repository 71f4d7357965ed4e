package main

import (
	"github.com/alex65536/keyreg/internal/util/idgen"
)

type Secrets struct {
	SessionKey           string `toml:"session-key"`
	SessionEncryptionKey string `toml:"session-encryption-key"`
	CSRFKey              string `toml:"csrf-key"`
}

func genKey(dst *string, n int, changed *bool) error {
	if *dst != "" {
		return nil
	}
	key, err := idgen.SecureKey(n)
	if err != nil {
		return err
	}
	*dst = key
	*changed = true
	return nil
}

// GenerateMissing fills empty keys with fresh random values and reports whether anything changed.
func (s *Secrets) GenerateMissing() (bool, error) {
	changed := false
	if err := genKey(&s.SessionKey, 64, &changed); err != nil {
		return false, err
	}
	if err := genKey(&s.SessionEncryptionKey, 32, &changed); err != nil {
		return false, err
	}
	if err := genKey(&s.CSRFKey, 32, &changed); err != nil {
		return false, err
	}
	return changed, nil
}
