package passkey

import (
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

type webauthnUser struct {
	u     *userauth.User
	creds []webauthn.Credential
}

var _ webauthn.User = (*webauthnUser)(nil)

func newWebauthnUser(u *userauth.User) *webauthnUser {
	wu := &webauthnUser{u: u}
	for _, c := range u.Credentials {
		raw, err := c.RawID()
		if err != nil {
			continue
		}
		transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
		for _, t := range c.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		wu.creds = append(wu.creds, webauthn.Credential{
			ID:              raw,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Transport:       transports,
			Authenticator: webauthn.Authenticator{
				AAGUID:    c.AAGUID,
				SignCount: c.SignCount,
			},
		})
	}
	return wu
}

func (w *webauthnUser) WebAuthnID() []byte                         { return w.u.Handle }
func (w *webauthnUser) WebAuthnName() string                       { return w.u.Username }
func (w *webauthnUser) WebAuthnDisplayName() string                { return w.u.Username }
func (w *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return w.creds }

func (w *webauthnUser) descriptors() []protocol.CredentialDescriptor {
	res := make([]protocol.CredentialDescriptor, 0, len(w.creds))
	for _, c := range w.creds {
		res = append(res, c.Descriptor())
	}
	return res
}
