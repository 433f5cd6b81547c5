package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/mo"
	"github.com/youmark/pkcs8"

	"cortexrelay/core"
)

const (
	keypairTokenType = "KEYPAIR_JWT"

	// Snowflake keypair tokens are valid for at most an hour; we reissue a
	// few minutes early so an in-flight request never carries an expired one.
	defaultLifetime = 59 * time.Minute
	renewalSkew     = 5 * time.Minute
)

type issuedToken struct {
	value     string
	expiresAt time.Time
}

// KeypairTokenSource mints short-lived RS256 JWTs from an RSA key pair, the
// bearer credential Snowflake expects for keypair authentication. Tokens are
// cached and reissued when they approach expiry.
type KeypairTokenSource struct {
	account     string
	user        string
	privateKey  *rsa.PrivateKey
	fingerprint string
	lifetime    time.Duration

	mu     sync.Mutex
	cached mo.Option[issuedToken]
	now    func() time.Time
}

// NewKeypairTokenSource loads the RSA private key and prepares a token
// source for the given account and user. Key problems are CredentialErrors.
func NewKeypairTokenSource(account, user, keyPath, passphrase string) (*KeypairTokenSource, error) {
	privateKey, err := loadPrivateKey(keyPath, passphrase)
	if err != nil {
		return nil, err
	}

	return &KeypairTokenSource{
		account:     prepareAccountName(account),
		user:        strings.ToUpper(user),
		privateKey:  privateKey,
		fingerprint: publicKeyFingerprint(privateKey),
		lifetime:    defaultLifetime,
		cached:      mo.None[issuedToken](),
		now:         time.Now,
	}, nil
}

// Token returns a valid signed JWT, reusing the cached one until it is
// within the renewal skew of its expiry.
func (s *KeypairTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.cached.Get(); ok {
		if s.now().Before(token.expiresAt.Add(-renewalSkew)) {
			return token.value, nil
		}
		log.Printf("📋 Cached JWT is near expiry - minting a new one")
	}

	token, err := s.mint()
	if err != nil {
		return "", err
	}
	s.cached = mo.Some(token)
	return token.value, nil
}

// TokenType identifies the credential for the Snowflake auth header
func (s *KeypairTokenSource) TokenType() string {
	return keypairTokenType
}

// ForceRefresh discards the cached token so the next Token call mints a fresh one
func (s *KeypairTokenSource) ForceRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = mo.None[issuedToken]()
}

// Issuer returns the iss claim this source signs tokens with
func (s *KeypairTokenSource) Issuer() string {
	return fmt.Sprintf("%s.%s.%s", s.account, s.user, s.fingerprint)
}

// PrivateKey exposes the loaded key for reuse by the SQL session layer
func (s *KeypairTokenSource) PrivateKey() *rsa.PrivateKey {
	return s.privateKey
}

func (s *KeypairTokenSource) mint() (issuedToken, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.lifetime)

	claims := jwt.MapClaims{
		"iss": s.Issuer(),
		"sub": fmt.Sprintf("%s.%s", s.account, s.user),
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return issuedToken{}, fmt.Errorf("failed to sign JWT: %w", err)
	}

	log.Printf("✅ Minted new keypair JWT for %s.%s, expires at %s", s.account, s.user, expiresAt.Format(time.RFC3339))
	return issuedToken{value: signed, expiresAt: expiresAt}, nil
}

// prepareAccountName normalizes an account identifier the way Snowflake's
// JWT validation expects: uppercase, region stripped - unless it is a global
// account, where only the external ID after the last dash is dropped.
func prepareAccountName(account string) string {
	account = strings.ToUpper(account)
	if !strings.Contains(account, ".GLOBAL") {
		if idx := strings.Index(account, "."); idx > 0 {
			return account[:idx]
		}
		return account
	}
	if idx := strings.LastIndex(account, "-"); idx > 0 {
		return account[:idx]
	}
	return account
}

// publicKeyFingerprint computes the SHA256:<base64> fingerprint of the
// public key, which Snowflake embeds in the expected issuer claim.
func publicKeyFingerprint(key *rsa.PrivateKey) string {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a well-formed RSA key
		panic(fmt.Sprintf("failed to marshal public key: %v", err))
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:])
}

// loadPrivateKey reads an RSA private key from a PEM file. Both plain and
// passphrase-encrypted PKCS#8 are supported, plus legacy PKCS#1.
func loadPrivateKey(path, passphrase string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.CredentialError{Path: path, Err: err}
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("no PEM block found")}
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		if passphrase == "" {
			return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("key is encrypted but no passphrase was provided")}
		}
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("failed to decrypt PKCS#8 key: %w", err)}
		}
		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("failed to parse PKCS#8 key: %w", err)}
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("key is not an RSA private key")}
		}
		return rsaKey, nil

	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("failed to parse PKCS#1 key: %w", err)}
		}
		return key, nil

	default:
		return nil, &core.CredentialError{Path: path, Err: fmt.Errorf("unsupported PEM block type %q", block.Type)}
	}
}
