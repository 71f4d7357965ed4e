package passkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/timeutil"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

type Options struct {
	RPID             string        `toml:"rp-id"`
	RPDisplayName    string        `toml:"rp-display-name"`
	RPOrigins        []string      `toml:"rp-origins"`
	Timeout          time.Duration `toml:"timeout"`
	UserVerification string        `toml:"user-verification"`
	ResidentKey      string        `toml:"resident-key"`
	Attestation      string        `toml:"attestation"`
}

func (o Options) Clone() Options {
	o.RPOrigins = slices.Clone(o.RPOrigins)
	return o
}

func (o *Options) FillDefaults() {
	if o.RPID == "" {
		o.RPID = "localhost"
	}
	if o.RPDisplayName == "" {
		o.RPDisplayName = "keyreg"
	}
	if len(o.RPOrigins) == 0 {
		o.RPOrigins = []string{"http://localhost:8080"}
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.UserVerification == "" {
		o.UserVerification = string(protocol.VerificationPreferred)
	}
	if o.ResidentKey == "" {
		o.ResidentKey = string(protocol.ResidentKeyRequirementPreferred)
	}
	if o.Attestation == "" {
		o.Attestation = string(protocol.PreferNoAttestation)
	}
}

// ErrorVerify means the authenticator response was rejected. This is the client's fault.
type ErrorVerify struct {
	e error
}

func (e *ErrorVerify) Unwrap() error { return e.e }
func (e *ErrorVerify) Error() string { return fmt.Sprintf("verify credential: %v", e.e) }

// Session is kept by the caller between Begin and Finish.
type Session struct {
	webauthn.SessionData
	// Username as typed by whoever started this ceremony.
	Username string `json:"username"`
}

type Registrar struct {
	wa    *webauthn.WebAuthn
	users *userauth.Manager
	log   *slog.Logger
	o     *Options
}

func New(log *slog.Logger, users *userauth.Manager, o Options) (*Registrar, error) {
	o = o.Clone()
	o.FillDefaults()
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          o.RPID,
		RPDisplayName: o.RPDisplayName,
		RPOrigins:     o.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    o.Timeout,
				TimeoutUVD: o.Timeout,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create webauthn: %w", err)
	}
	return &Registrar{
		wa:    wa,
		users: users,
		log:   log,
		o:     &o,
	}, nil
}

// Begin starts a registration ceremony for the username. The returned session must be kept by the
// caller and passed to Finish.
func (r *Registrar) Begin(ctx context.Context, username string) (*protocol.CredentialCreation, *Session, error) {
	user, err := r.users.PendingUser(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("pending user: %w", err)
	}
	wu := newWebauthnUser(&user)
	creation, session, err := r.wa.BeginRegistration(wu,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirement(r.o.ResidentKey),
			UserVerification: protocol.UserVerificationRequirement(r.o.UserVerification),
		}),
		webauthn.WithConveyancePreference(protocol.ConveyancePreference(r.o.Attestation)),
		webauthn.WithExclusions(wu.descriptors()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("begin registration: %w", err)
	}
	r.log.Info("registration started",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return creation, &Session{SessionData: *session, Username: username}, nil
}

// Finish verifies the authenticator response contained in req and stores the new credential.
func (r *Registrar) Finish(ctx context.Context, session Session, req *http.Request) (userauth.User, userauth.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponse(req)
	if err != nil {
		return userauth.User{}, userauth.Credential{}, &ErrorVerify{e: err}
	}
	return r.FinishParsed(ctx, session, parsed)
}

func (r *Registrar) FinishParsed(
	ctx context.Context,
	session Session,
	parsed *protocol.ParsedCredentialCreationData,
) (userauth.User, userauth.Credential, error) {
	user, err := r.users.GetUserByHandle(ctx, session.UserID, userauth.GetUserOptions{WithCredentials: true})
	if err != nil {
		return userauth.User{}, userauth.Credential{}, fmt.Errorf("get user: %w", err)
	}
	if user.IsComplete() {
		return userauth.User{}, userauth.Credential{}, userauth.ErrNameTaken
	}
	waCred, err := r.wa.CreateCredential(newWebauthnUser(&user), session.SessionData, parsed)
	if err != nil {
		return userauth.User{}, userauth.Credential{}, &ErrorVerify{e: err}
	}
	// Another ceremony for the same name may have changed the casing since.
	if session.Username != "" && session.Username != user.Username {
		if err := r.users.TouchPendingUser(ctx, user.ID, session.Username, timeutil.NowUTC()); err != nil {
			if errors.Is(err, userauth.ErrNameTaken) || errors.Is(err, userauth.ErrUserNotFound) {
				return userauth.User{}, userauth.Credential{}, err
			}
			return userauth.User{}, userauth.Credential{}, fmt.Errorf("touch user: %w", err)
		}
		user.Username = session.Username
	}
	cred := credentialFromWebauthn(user.ID, waCred)
	if err := r.users.AddCredential(ctx, cred); err != nil {
		if errors.Is(err, userauth.ErrNameTaken) || errors.Is(err, userauth.ErrCredentialAlreadyExist) {
			return userauth.User{}, userauth.Credential{}, err
		}
		return userauth.User{}, userauth.Credential{}, fmt.Errorf("add credential: %w", err)
	}
	r.log.Info("registration finished",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("credential_id", cred.ID),
	)
	user.Credentials = append(user.Credentials, cred)
	return user, cred, nil
}

func credentialFromWebauthn(userID string, c *webauthn.Credential) userauth.Credential {
	transports := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		transports = append(transports, string(t))
	}
	return userauth.Credential{
		ID:              userauth.EncodeCredentialID(c.ID),
		UserID:          userID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		AAGUID:          c.Authenticator.AAGUID,
		SignCount:       c.Authenticator.SignCount,
		Transports:      transports,
		CreatedAt:       timeutil.NowUTC(),
	}
}
