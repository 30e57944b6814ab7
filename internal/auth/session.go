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
	"github.com/sirupsen/logrus"
)

// ErrMalformedPlayerID marks a verified token whose subject is not a
// player id. Handlers distinguish it from a plain verification failure.
var ErrMalformedPlayerID = errors.New("malformed player id in session")

// Session tokens are ed25519-signed JWTs carrying the player id in "sub".
// The key pair lives only in memory; restarting the process invalidates
// every outstanding session.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL of zero means tokens never expire.
	tokenTTL time.Duration
)

// Init generates the signing key pair and reads TOKEN_EXPIRE_TIME
// (a Go duration string, or "never"/"0"/empty for no expiry).
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		logrus.Fatalf("generate session key pair: %v", err)
	}

	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	switch raw {
	case "", "0", "never":
		tokenTTL = 0
	default:
		tokenTTL, err = time.ParseDuration(raw)
		if err != nil {
			logrus.Fatalf("parse TOKEN_EXPIRE_TIME: %v", err)
		}
	}
}

// InitFromPath loads a persisted key pair instead of generating one, so
// sessions survive restarts when the deployment provides key files.
func InitFromPath(privatePath, publicPath string) error {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	privateKey = ed25519.PrivateKey(priv)
	publicKey = ed25519.PublicKey(pub)
	return nil
}

// CreateSessionToken issues a signed token for the given player.
func CreateSessionToken(playerID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{"sub": playerID.String()}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateRequest resolves the session on an incoming connection to a
// player id. Login itself happens in the external web layer; the realtime
// core only verifies the auth_token cookie that layer already set.
func AuthenticateRequest(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return uuid.Nil, fmt.Errorf("missing auth_token cookie: %w", err)
	}
	sub, err := verifyToken(cookie.Value)
	if err != nil {
		return uuid.Nil, err
	}
	playerID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedPlayerID, err)
	}
	return playerID, nil
}

// verifyToken checks the signature and expiry and returns the subject claim.
func verifyToken(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("session token missing subject")
	}
	return sub, nil
}
