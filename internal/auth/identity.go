package auth

import (
	"encoding/json/v2"
	"fmt"
	"slices"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/id"
)

// Claims are the fields read from a v4.local identity token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Identity is the verified caller of a request.
type Identity struct {
	Email     string
	Name      string
	Role      domain.Role
	TokenID   string
	ExpiresAt time.Time
}

// IsCaregiver reports whether the caller is on the caregiver allow-list.
func (i *Identity) IsCaregiver() bool {
	return i != nil && i.Role == domain.RoleCaregiver
}

// VerifierConfig configures token verification.
type VerifierConfig struct {
	Key             []byte
	Issuer          string
	Audience        string
	CaregiverEmails []string
}

// Verifier checks identity tokens. The email claim is trusted as verified
// by the identity provider; the role comes from the allow-list.
type Verifier struct {
	key        paseto.V4SymmetricKey
	issuer     string
	audience   string
	caregivers []string
	now        func() time.Time
}

// NewVerifier builds a verifier from a 32-byte key.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if len(cfg.Key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(cfg.Key))
	}
	key, err := paseto.V4SymmetricKeyFromBytes(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	caregivers := make([]string, 0, len(cfg.CaregiverEmails))
	for _, e := range cfg.CaregiverEmails {
		if e = domain.NormalizeEmail(e); e != "" {
			caregivers = append(caregivers, e)
		}
	}
	slices.Sort(caregivers)

	return &Verifier{
		key:        key,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		caregivers: slices.Compact(caregivers),
		now:        time.Now,
	}, nil
}

// RoleFor resolves the role of an email, case-insensitively.
func (v *Verifier) RoleFor(email string) domain.Role {
	if _, ok := slices.BinarySearch(v.caregivers, domain.NormalizeEmail(email)); ok {
		return domain.RoleCaregiver
	}
	return domain.RoleListener
}

// Verify decrypts and validates token. Every failure is UNAUTHORIZED.
func (v *Verifier) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainerrors.Unauthorized("missing identity token")
	}

	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(v.audience))
	parser.AddRule(paseto.IssuedBy(v.issuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(v.now()))

	parsed, err := parser.ParseV4Local(v.key, token, nil)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid identity token").WithCause(err)
	}

	var claims Claims
	if err := json.Unmarshal(parsed.ClaimsJSON(), &claims); err != nil {
		return nil, domainerrors.Unauthorized("invalid identity claims").WithCause(err)
	}

	email := domain.NormalizeEmail(claims.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domainerrors.Unauthorized("identity token has no email")
	}

	return &Identity{
		Email:     email,
		Name:      strings.TrimSpace(claims.Name),
		Role:      v.RoleFor(email),
		TokenID:   claims.TokenID,
		ExpiresAt: claims.Expiration,
	}, nil
}

// Issuer mints tokens in the identity provider's format. The server never
// issues tokens itself; the dev token tool and tests do.
type Issuer struct {
	key      paseto.V4SymmetricKey
	issuer   string
	audience string
}

// NewIssuer builds an issuer sharing cfg's key and claims contract.
func NewIssuer(cfg VerifierConfig) (*Issuer, error) {
	key, err := paseto.V4SymmetricKeyFromBytes(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &Issuer{key: key, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

// Issue returns a v4.local token for email valid for ttl.
func (i *Issuer) Issue(email, name string, ttl time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuer(i.issuer)
	token.SetSubject(email)
	token.SetAudience(i.audience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(ttl))

	tokenID, err := id.Generate(id.Token)
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	//nolint:errcheck // Token.Set only errors on types it cannot encode
	_ = token.Set("email", email)
	if name != "" {
		//nolint:errcheck // as above
		_ = token.Set("name", name)
	}

	return token.V4Encrypt(i.key, nil), nil
}
