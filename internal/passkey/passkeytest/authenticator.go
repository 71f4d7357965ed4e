// Package passkeytest provides a software authenticator for registration tests.
package passkeytest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
	flagAttestedData = 0x40
)

// Authenticator holds one ES256 credential and answers create() calls with "none" attestation.
type Authenticator struct {
	CredentialID []byte
	Key          *ecdsa.PrivateKey
}

func NewAuthenticator() (*Authenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	id := make([]byte, 32)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("generate credential id: %w", err)
	}
	return &Authenticator{CredentialID: id, Key: key}, nil
}

// EncodedID is the credential ID as it appears in responses.
func (a *Authenticator) EncodedID() string {
	return base64.RawURLEncoding.EncodeToString(a.CredentialID)
}

func (a *Authenticator) coseKey() ([]byte, error) {
	pub, err := a.Key.PublicKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("convert key: %w", err)
	}
	// Uncompressed point: 0x04 || X || Y.
	raw := pub.Bytes()
	return webauthncbor.Marshal(map[int]any{
		1:  int(webauthncose.EllipticKey),
		3:  int(webauthncose.AlgES256),
		-1: int(webauthncose.P256),
		-2: raw[1:33],
		-3: raw[33:65],
	})
}

func (a *Authenticator) authData(rpID string) ([]byte, error) {
	key, err := a.coseKey()
	if err != nil {
		return nil, err
	}
	rpHash := sha256.Sum256([]byte(rpID))
	buf := make([]byte, 0, 37+16+2+len(a.CredentialID)+len(key))
	buf = append(buf, rpHash[:]...)
	buf = append(buf, flagUserPresent|flagUserVerified|flagAttestedData)
	buf = binary.BigEndian.AppendUint32(buf, 0)
	buf = append(buf, make([]byte, 16)...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(a.CredentialID)))
	buf = append(buf, a.CredentialID...)
	buf = append(buf, key...)
	return buf, nil
}

// CreationResponse builds the JSON body a browser would post after navigator.credentials.create().
func (a *Authenticator) CreationResponse(rpID, origin, challenge string) ([]byte, error) {
	clientData, err := json.Marshal(protocol.CollectedClientData{
		Type:      protocol.CreateCeremony,
		Challenge: challenge,
		Origin:    origin,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal client data: %w", err)
	}
	authData, err := a.authData(rpID)
	if err != nil {
		return nil, fmt.Errorf("auth data: %w", err)
	}
	attObj, err := webauthncbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal attestation object: %w", err)
	}
	enc := base64.RawURLEncoding
	return json.Marshal(map[string]any{
		"id":    a.EncodedID(),
		"rawId": a.EncodedID(),
		"type":  "public-key",
		"response": map[string]any{
			"clientDataJSON":    enc.EncodeToString(clientData),
			"attestationObject": enc.EncodeToString(attObj),
			"transports":        []string{"internal"},
		},
	})
}
