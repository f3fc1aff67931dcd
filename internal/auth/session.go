// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName carries the guest token between requests.
const CookieName = "auth_token"

var ErrInvalidToken = errors.New("invalid token")

// Identity is a guest player.
type Identity struct {
	ID   uuid.UUID
	Name string
}

// Issuer signs and verifies guest tokens with an ed25519 key pair.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// expire of 0 means tokens carry no exp claim.
	expire time.Duration
}

// NewIssuer generates a fresh key pair. Tokens do not survive a restart.
func NewIssuer(expire time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, expire: expire}, nil
}

// NewIssuerFromPath reads a raw ed25519 private key from file.
func NewIssuerFromPath(privatePath string, expire time.Duration) (*Issuer, error) {
	data, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key file has %d bytes, want %d", len(data), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(data)
	return &Issuer{privateKey: priv, publicKey: priv.Public().(ed25519.PublicKey), expire: expire}, nil
}

// Create signs a token with "sub" = id and "name" = the display name.
func (i *Issuer) Create(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.ID.String(),
		"name": id.Name,
		"iat":  time.Now().Unix(),
	}
	if i.expire != 0 {
		claims["exp"] = time.Now().Add(i.expire).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// Authenticate verifies a token and returns the identity it names.
func (i *Issuer) Authenticate(tokenString string) (Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrInvalidToken)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing sub in jwt", ErrInvalidToken)
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad sub: %v", ErrInvalidToken, err)
	}
	name, _ := claims["name"].(string)
	return Identity{ID: id, Name: name}, nil
}

// FromRequest authenticates the request's auth_token cookie.
func (i *Issuer) FromRequest(r *http.Request) (Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return i.Authenticate(c.Value)
}

// EnsureGuest returns the request's identity, creating a guest and setting
// its cookie on w when the request has no valid token. A non-empty name
// replaces the stored display name.
func (i *Issuer) EnsureGuest(w http.ResponseWriter, r *http.Request, name string) (Identity, error) {
	id, err := i.FromRequest(r)
	if err == nil && (name == "" || name == id.Name) {
		return id, nil
	}
	if err != nil {
		id = Identity{ID: uuid.New()}
	}
	if name != "" {
		id.Name = name
	}
	if id.Name == "" {
		id.Name = "guest-" + id.ID.String()[:4]
	}

	token, err := i.Create(id)
	if err != nil {
		return Identity{}, fmt.Errorf("create guest token: %w", err)
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if i.expire > 0 {
		cookie.Expires = time.Now().Add(i.expire)
	}
	http.SetCookie(w, cookie)
	return id, nil
}
