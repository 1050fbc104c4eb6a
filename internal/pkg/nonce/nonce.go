package nonce

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid covers expired, forged and mismatched nonces alike.
var ErrInvalid = errors.New("invalid nonce")

// Claims binds a form token to one action and one actor.
type Claims struct {
	Action string `json:"act"`
	Actor  string `json:"sub_actor"`
	jwt.RegisteredClaims
}

// Issuer signs and checks form nonces with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer 创建 nonce 签发器
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token valid for action by actor until the ttl elapses.
func (i *Issuer) Issue(action, actor string) (string, error) {
	now := i.now()
	claims := Claims{
		Action: action,
		Actor:  actor,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature, expiry and binding.
func (i *Issuer) Verify(token, action, actor string) error {
	if token == "" {
		return ErrInvalid
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return ErrInvalid
	}
	if claims.Action != action || claims.Actor != actor {
		return ErrInvalid
	}
	return nil
}
