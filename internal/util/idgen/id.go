package idgen

import (
	crand "crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

func init() {
	if len(idAlphabet) != 32 {
		panic("must not happen")
	}
	for i := 1; i < len(idAlphabet); i++ {
		if idAlphabet[i-1] >= idAlphabet[i] {
			panic("must not happen")
		}
	}
}

func ID() string {
	// This ID generator follows https://github.com/ulid/spec, but is lowercase and not monotonic.
	var b strings.Builder
	ts := uint64(time.Now().UnixMilli()) & ((1 << 48) - 1)
	for i := 45; i >= 0; i -= 5 {
		_ = b.WriteByte(idAlphabet[(ts>>i)&31])
	}
	for range 2 {
		r := rand.Uint64()
		for range 8 {
			_ = b.WriteByte(idAlphabet[r&31])
			r >>= 5
		}
	}
	return b.String()
}

// SecureKey returns n bytes from crypto/rand, encoded as standard base64.
func SecureKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(crand.Reader, buf); err != nil {
		return "", fmt.Errorf("crypto rand: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func DecodeKey(key string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return b, nil
}
