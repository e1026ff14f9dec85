// Package auth signs requests to the bot-builder client API.
//
// Every request carries two headers derived from the API key, the API
// secret, and the current unix time:
//
//	X-Api-Key:       <apiKey>|<unixSeconds>
//	X-Api-Signature: sha256=<hex(HMAC-SHA256(apiSecret, "<apiKey>|<unixSeconds>"))>
//
// The signature is recomputed for every call and never reused.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names and the signature algorithm tag.
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Api-Signature"
	SignaturePrefix = "sha256="
)

// Credentials is the long-lived API key pair. Immutable once constructed.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Validate reports a ConfigurationError naming the first missing credential.
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return &ConfigurationError{Field: "api_key", Message: "API key is required"}
	}
	if c.APISecret == "" {
		return &ConfigurationError{Field: "api_secret", Message: "API secret is required"}
	}
	return nil
}

// SignedRequestHeader holds the header values for one request.
type SignedRequestHeader struct {
	Timestamp int64
	APIKey    string // "<apiKey>|<timestamp>"
	Signature string // "sha256=<hex>"
}

// Apply sets both authentication headers.
func (h SignedRequestHeader) Apply(header http.Header) {
	header.Set(HeaderAPIKey, h.APIKey)
	header.Set(HeaderSignature, h.Signature)
}

// Sign derives the request headers for the given instant. It is a pure
// function of its inputs.
func Sign(creds Credentials, now time.Time) (SignedRequestHeader, error) {
	if err := creds.Validate(); err != nil {
		return SignedRequestHeader{}, err
	}

	ts := now.Unix()
	keyField := creds.APIKey + "|" + strconv.FormatInt(ts, 10)

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(keyField))

	return SignedRequestHeader{
		Timestamp: ts,
		APIKey:    keyField,
		Signature: SignaturePrefix + hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Verify checks a header pair against the credentials in constant time.
// The timestamp embedded in the key field is trusted as given.
func Verify(creds Credentials, keyField, signature string) bool {
	if len(keyField) <= len(creds.APIKey)+1 || keyField[:len(creds.APIKey)+1] != creds.APIKey+"|" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(keyField))
	expected := SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Clock supplies the current time for signing.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Signer binds credentials to a clock.
//
// Thread-safety: Signer is immutable and safe for concurrent use.
type Signer struct {
	creds Credentials
	clock Clock
}

// NewSigner validates the credentials up front so that a missing key or
// secret fails before any request is built. A nil clock means SystemClock.
func NewSigner(creds Credentials, clock Clock) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Signer{creds: creds, clock: clock}, nil
}

// Sign signs for the clock's current time.
func (s *Signer) Sign() (SignedRequestHeader, error) {
	return Sign(s.creds, s.clock.Now())
}

// Apply signs req in place.
func (s *Signer) Apply(req *http.Request) error {
	h, err := s.Sign()
	if err != nil {
		return fmt.Errorf("sign %s %s: %w", req.Method, req.URL.Path, err)
	}
	h.Apply(req.Header)
	return nil
}

// ConfigurationError reports missing or empty credentials. It is raised
// before any network call is attempted.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (%s)", e.Message, e.Field)
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
