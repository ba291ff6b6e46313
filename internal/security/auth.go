package security

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/example/telemetry-sdk/internal/transport"
)

var (
	// ErrUnknownAppKey is returned for a missing or unregistered app key.
	ErrUnknownAppKey = errors.New("unknown app key")
	// ErrBadChecksum is returned when checksum256 is missing or wrong.
	ErrBadChecksum = errors.New("checksum mismatch")
)

// Verifier checks the app key and, when a salt is configured, the
// checksum256 signature of SDK requests.
type Verifier struct {
	appKeys []string
	salt    string
}

// NewVerifier accepts the given app keys. An empty list accepts any
// non-empty key.
func NewVerifier(appKeys []string, salt string) *Verifier {
	keys := make([]string, 0, len(appKeys))
	for _, k := range appKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return &Verifier{appKeys: keys, salt: salt}
}

// VerifyAppKey checks appKey against the registered keys.
func (v *Verifier) VerifyAppKey(appKey string) error {
	if appKey == "" {
		return ErrUnknownAppKey
	}
	if len(v.appKeys) == 0 {
		return nil
	}
	for _, k := range v.appKeys {
		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(appKey), []byte(k)) == 1 {
			return nil
		}
	}
	return ErrUnknownAppKey
}

// VerifyChecksum checks the signature appended to the raw encoded request
// (query string or form body). Without a salt every request passes.
func (v *Verifier) VerifyChecksum(raw string) error {
	if v.salt == "" {
		return nil
	}
	encoded, sum, ok := SplitChecksum(raw)
	if !ok {
		return ErrBadChecksum
	}
	want := transport.Checksum(encoded, v.salt)
	if subtle.ConstantTimeCompare([]byte(sum), []byte(want)) != 1 {
		return ErrBadChecksum
	}
	return nil
}

// SplitChecksum separates the signed part of raw from its trailing
// checksum256 parameter.
func SplitChecksum(raw string) (encoded, sum string, ok bool) {
	marker := transport.ChecksumParam + "="
	if i := strings.LastIndex(raw, "&"+marker); i >= 0 {
		return raw[:i], raw[i+len(marker)+1:], true
	}
	if strings.HasPrefix(raw, marker) {
		return "", raw[len(marker):], true
	}
	return raw, "", false
}

// APIKeyMiddleware validates API keys for the query endpoints
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			// Try Authorization header
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if !validateAPIKey(apiKey) {
			http.Error(w, "Unauthorized: Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateAPIKey checks if the provided API key is valid
func validateAPIKey(apiKey string) bool {
	validKey := os.Getenv("API_KEY")
	if validKey == "" {
		validKey = "collector-api-secret"
	}

	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1
}
