// Package identity verifies the RS256 JWTs the companion app attaches to its
// requests and turns them into a fixed, validated DecodedIdentity.
package identity

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-device-link/identity/keys"
	"github.com/jrsteele09/go-device-link/internal/errors"
	"github.com/samber/lo"
)

// AppClaims is the claim set issued by the companion app. Older app builds
// send installation_id instead of device_id; both identify a device.
type AppClaims struct {
	UserID         string   `json:"user_id" validate:"required,uuid"`
	DeviceID       string   `json:"device_id,omitempty" validate:"omitempty,uuid"`
	InstallationID string   `json:"installation_id,omitempty" validate:"omitempty,uuid"`
	UserDeviceIDs  []string `json:"user_device_ids,omitempty" validate:"omitempty,dive,uuid"`
	DeveloperID    string   `json:"developer_id"`
	jwtlib.RegisteredClaims
}

// DecodedIdentity is the verified caller. It is never persisted.
type DecodedIdentity struct {
	UserID      string
	DeviceID    string
	DeveloperID string
	DeviceIDs   []string
}

// AuthorizedDeviceIDs is the set of devices this identity may claim: the
// user_device_ids list plus the single device_id, when present.
func (d *DecodedIdentity) AuthorizedDeviceIDs() []string {
	ids := append([]string{}, d.DeviceIDs...)
	if d.DeviceID != "" {
		ids = append(ids, d.DeviceID)
	}
	return lo.Uniq(ids)
}

type Verifier struct {
	publicKey   *rsa.PublicKey
	developerID string
	nowFunc     func() time.Time
	validate    *validator.Validate
}

type VerifierOption func(*Verifier)

func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowFunc = now
	}
}

// NewVerifier creates a verifier accepting tokens signed by publicKey whose
// developer_id equals developerID.
func NewVerifier(publicKey *rsa.PublicKey, developerID string, options ...VerifierOption) (*Verifier, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("[identity NewVerifier] public key is required")
	}
	if developerID == "" {
		return nil, fmt.Errorf("[identity NewVerifier] developer id is required")
	}

	v := &Verifier{
		publicKey:   publicKey,
		developerID: developerID,
		nowFunc:     time.Now,
		validate:    validator.New(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// NewVerifierFromPEM is NewVerifier for a PEM encoded public key
func NewVerifierFromPEM(publicKeyPEM, developerID string, options ...VerifierOption) (*Verifier, error) {
	publicKey, err := keys.LoadRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("[identity NewVerifierFromPEM] %w", err)
	}
	return NewVerifier(publicKey, developerID, options...)
}

// Verify checks the signature, expiry and developer id of rawToken and
// returns the caller's identity. rawToken may carry a "Bearer " prefix.
func (v *Verifier) Verify(rawToken string) (*DecodedIdentity, error) {
	rawToken = stripBearer(rawToken)
	if rawToken == "" {
		return nil, errors.ErrNoCredentials
	}

	claims := &AppClaims{}
	_, err := jwtlib.ParseWithClaims(rawToken, claims, v.getVerificationKey,
		jwtlib.WithValidMethods([]string{keys.RS256}),
		jwtlib.WithTimeFunc(v.nowFunc),
	)
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return nil, errors.ErrTokenExpired
	case err != nil:
		return nil, errors.Wrapf(errors.ErrInvalidToken, "%s", err.Error())
	}

	if claims.DeveloperID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidIssuer, "missing developer id")
	}
	if claims.DeveloperID != v.developerID {
		return nil, errors.Wrapf(errors.ErrInvalidIssuer, "developer id mismatch")
	}

	if err := v.validate.Struct(claims); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "%s", describeValidation(err))
	}

	return &DecodedIdentity{
		UserID:      canonical(claims.UserID),
		DeviceID:    canonical(lo.CoalesceOrEmpty(claims.DeviceID, claims.InstallationID)),
		DeveloperID: claims.DeveloperID,
		DeviceIDs:   lo.Map(claims.UserDeviceIDs, func(id string, _ int) string { return canonical(id) }),
	}, nil
}

func (v *Verifier) getVerificationKey(token *jwtlib.Token) (any, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.publicKey, nil
}

func stripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "bearer") {
		return ""
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}

// canonical lower-cases and hyphenates a UUID so ids from different sources
// compare equal. Input has already passed validation.
func canonical(id string) string {
	if id == "" {
		return ""
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
		return fmt.Sprintf("claim '%s' failed '%s'", e.Field(), e.Tag())
	})
	return strings.Join(messages, ", ")
}
