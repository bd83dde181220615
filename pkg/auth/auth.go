package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type Config struct {
	Secret   string        `yaml:"secret" envconfig:"JWT_SECRET"`
	TokenTTL time.Duration `yaml:"tokenTTL" envconfig:"JWT_TTL"`
}

// Identity is what the rest of the service knows about the caller.
type Identity struct {
	UserID      int
	Username    string
	IsStaff     bool
	IsSuperuser bool
}

type Claims struct {
	Profile struct {
		UserID    int    `json:"userId"`
		Username  string `json:"username"`
		Staff     bool   `json:"staff"`
		Superuser bool   `json:"superuser"`
	} `json:"profile"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key []byte
	ttl time.Duration
}

func NewIssuer(cfg Config) *Issuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		key: []byte(cfg.Secret),
		ttl: ttl,
	}
}

func (i *Issuer) Issue(id Identity, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	claims.Profile.UserID = id.UserID
	claims.Profile.Username = id.Username
	claims.Profile.Staff = id.IsStaff
	claims.Profile.Superuser = id.IsSuperuser

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "SignedString")
	}
	return token, expiresAt, nil
}

func (i *Issuer) Parse(tokenStr string) (Identity, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UserID:      claims.Profile.UserID,
		Username:    claims.Profile.Username,
		IsStaff:     claims.Profile.Staff,
		IsSuperuser: claims.Profile.Superuser,
	}, nil
}

type contextKey int

const identityKey contextKey = iota + 1

func SetAuthContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// IsStaff is true for staff and superusers.
func IsStaff(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && (id.IsStaff || id.IsSuperuser)
}

func IsSuperuser(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.IsSuperuser
}
