// Package tokenstore persists access tokens and the collaborator grants made
// with them. Tokens are stored only as SHA-256 hashes.
package tokenstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sqlc-dev/pqtype"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
)

// NewToken describes a token to issue.
type NewToken struct {
	Label          string               `json:"label"`
	Repository     string               `json:"repository"`
	Permission     githubapi.Permission `json:"permission"`
	ValidFor       time.Duration        `json:"-"` // zero means no redemption deadline
	AccessDuration time.Duration        `json:"-"` // zero means access never lapses
}

// Validate checks the repository and permission.
func (n NewToken) Validate() error {
	owner, repo, ok := strings.Cut(n.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return errors.Newf("tokenstore: repository must be owner/repo, got %q", n.Repository)
	}
	if n.Permission != "" {
		if _, err := githubapi.ParsePermission(string(n.Permission)); err != nil {
			return err
		}
	}
	if n.ValidFor < 0 || n.AccessDuration < 0 {
		return errors.New("tokenstore: durations must not be negative")
	}
	return nil
}

// Generate returns a new random token in URL-safe base64.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "tokenstore: generating token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash is the stored form of token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// inet converts a client address to a nullable INET value.
func inet(addr string) pqtype.Inet {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return pqtype.Inet{}
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	return pqtype.Inet{IPNet: net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, Valid: true}
}

func inetString(v pqtype.Inet) string {
	if !v.Valid {
		return ""
	}
	return v.IPNet.IP.String()
}

// Counts summarizes the store for the metrics collector.
type Counts struct {
	// OutstandingTokens are unused tokens whose redemption deadline has
	// not passed.
	OutstandingTokens int64
	// ActiveGrants are grants not yet revoked.
	ActiveGrants int64
}
