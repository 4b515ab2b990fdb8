package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/soulmechanik/forems-portal/internal/domain"
)

// CodecConfig holds cookie token settings
type CodecConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Codec turns a domain.Token into a signed, tamper-proof string and back
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	sealer *sealer
	now    func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Email            string   `json:"email,omitempty"`
	Name             string   `json:"name,omitempty"`
	Roles            []string `json:"roles"`
	ActiveRole       *string  `json:"active_role"`
	Onboarded        bool     `json:"onboarded"`
	Verified         bool     `json:"verified"`
	HasActiveTenancy bool     `json:"has_active_tenancy"`
	Credential       string   `json:"cred,omitempty"`
	RefreshedAt      int64    `json:"rat,omitempty"`
}

// NewCodec creates a Codec
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	s, err := newSealer(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Codec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		sealer: s,
		now:    time.Now,
	}, nil
}

// TTL returns the token lifetime
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs t. The expiry slides forward on every encode.
func (c *Codec) Encode(t domain.Token) (string, error) {
	if t.IsEmpty() {
		return "", fmt.Errorf("%w: cannot encode a token without user id", domain.ErrInvalidSession)
	}

	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.SessionID,
			Subject:   t.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(t.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.now().Add(c.ttl)),
		},
		Email:            t.Email,
		Name:             t.Name,
		Roles:            make([]string, 0, len(t.Roles)),
		Onboarded:        t.Onboarded,
		Verified:         t.Verified,
		HasActiveTenancy: t.HasActiveTenancy,
	}
	for _, r := range t.Roles {
		cl.Roles = append(cl.Roles, string(r))
	}
	if t.ActiveRole != nil {
		role := string(*t.ActiveRole)
		cl.ActiveRole = &role
	}
	if !t.RefreshedAt.IsZero() {
		cl.RefreshedAt = t.RefreshedAt.Unix()
	}
	if t.BackendCredential != "" {
		sealed, err := c.sealer.seal(t.BackendCredential, t.SessionID)
		if err != nil {
			return "", fmt.Errorf("seal credential: %w", err)
		}
		cl.Credential = sealed
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies and unpacks a token string.
// Every failure is reported as domain.ErrInvalidSession.
func (c *Codec) Decode(s string) (domain.Token, error) {
	var cl claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	_, err := jwt.ParseWithClaims(s, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w: %w", domain.ErrInvalidSession, err)
	}

	t := domain.Token{
		SessionID:        cl.ID,
		UserID:           cl.Subject,
		Email:            cl.Email,
		Name:             cl.Name,
		Roles:            make([]domain.Role, 0, len(cl.Roles)),
		Onboarded:        cl.Onboarded,
		Verified:         cl.Verified,
		HasActiveTenancy: cl.HasActiveTenancy,
	}
	for _, r := range cl.Roles {
		t.Roles = append(t.Roles, domain.Role(r))
	}
	if cl.ActiveRole != nil {
		t.ActiveRole = domain.RolePtr(domain.Role(*cl.ActiveRole))
	}
	if cl.IssuedAt != nil {
		t.IssuedAt = cl.IssuedAt.Time
	}
	if cl.RefreshedAt != 0 {
		t.RefreshedAt = time.Unix(cl.RefreshedAt, 0)
	}
	if cl.Credential != "" {
		cred, err := c.sealer.open(cl.Credential, cl.ID)
		if err != nil {
			return domain.Token{}, fmt.Errorf("%w: %w", domain.ErrInvalidSession, err)
		}
		t.BackendCredential = cred
	}
	return t, nil
}
