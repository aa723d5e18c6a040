package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ScopeWildcard covers every command and optional capability.
const ScopeWildcard = "*"

// Optional-capability scopes. A token may permit the base command yet lack
// one of these; that blocks only the specific write, never the command.
const (
	ScopeHintsWrite      = "hints:write"
	ScopeFederationWrite = "federation:write"
)

// TokenSpec is one acceptable permit token declared in the policy.
// Either Token (plaintext compare) or TokenHash (bcrypt) identifies it.
// Expiry is either absolute (ExpiresAt, RFC3339) or relative
// (IssuedAt + TTLSeconds).
type TokenSpec struct {
	Token      string   `json:"token,omitempty" mapstructure:"token"`
	TokenHash  string   `json:"token_hash,omitempty" mapstructure:"token_hash"`
	Scopes     []string `json:"scopes" mapstructure:"scopes"`
	ExpiresAt  string   `json:"expires_at,omitempty" mapstructure:"expires_at"`
	IssuedAt   string   `json:"issued_at,omitempty" mapstructure:"issued_at"`
	TTLSeconds int      `json:"ttl_seconds,omitempty" mapstructure:"ttl_seconds"`
}

func (s *TokenSpec) validate() error {
	if s.Token == "" && s.TokenHash == "" {
		return fmt.Errorf("token definition needs token or token_hash")
	}
	if len(s.Scopes) == 0 {
		return fmt.Errorf("token definition needs at least one scope")
	}
	if s.ExpiresAt != "" {
		if _, err := time.Parse(time.RFC3339, s.ExpiresAt); err != nil {
			return fmt.Errorf("invalid expires_at: %w", err)
		}
	}
	if s.TTLSeconds != 0 && s.IssuedAt == "" {
		return fmt.Errorf("ttl_seconds requires issued_at")
	}
	if s.IssuedAt != "" {
		if _, err := time.Parse(time.RFC3339, s.IssuedAt); err != nil {
			return fmt.Errorf("invalid issued_at: %w", err)
		}
	}
	return nil
}

// expired reports whether the spec's own expiry has passed.
func (s *TokenSpec) expired(now time.Time) bool {
	if s.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, s.ExpiresAt)
		if err != nil {
			return true
		}
		return now.After(t)
	}
	if s.IssuedAt != "" && s.TTLSeconds > 0 {
		issued, err := time.Parse(time.RFC3339, s.IssuedAt)
		if err != nil {
			return true
		}
		return now.After(issued.Add(time.Duration(s.TTLSeconds) * time.Second))
	}
	return false
}

// matches reports whether a presented plaintext token identifies this spec.
func (s *TokenSpec) matches(presented string) bool {
	if s.Token != "" {
		return s.Token == presented
	}
	if s.TokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.TokenHash), []byte(presented)) == nil
	}
	return false
}

// structuredToken is the inline presented-token form:
// {"token": "...", "scope": [...], "expires_at": "..."} or issued_at+ttl.
type structuredToken struct {
	Token      string   `json:"token"`
	Scope      []string `json:"scope"`
	ExpiresAt  string   `json:"expires_at"`
	IssuedAt   string   `json:"issued_at"`
	TTLSeconds int      `json:"ttl_seconds"`
}

// verifyToken checks a presented token against the policy. The presented
// value is either a plain string matched against declared token specs, or
// an inline JSON object carrying its own scope and expiry. Token checking
// is scope/TTL verification only, not key management.
func verifyToken(p *Policy, presented, command string) *TokenDetail {
	detail := &TokenDetail{Used: true}
	now := time.Now().UTC()

	trimmed := strings.TrimSpace(presented)
	if strings.HasPrefix(trimmed, "{") {
		var st structuredToken
		if err := json.Unmarshal([]byte(trimmed), &st); err != nil || st.Token == "" {
			return detail
		}
		spec := TokenSpec{
			Token:      st.Token,
			Scopes:     st.Scope,
			ExpiresAt:  st.ExpiresAt,
			IssuedAt:   st.IssuedAt,
			TTLSeconds: st.TTLSeconds,
		}
		detail.Scopes = spec.Scopes
		detail.Expired = spec.expired(now)
		detail.Covered = ScopeCovers(spec.Scopes, command)
		return detail
	}

	for i := range p.Tokens {
		spec := &p.Tokens[i]
		if !spec.matches(trimmed) {
			continue
		}
		detail.Scopes = spec.Scopes
		detail.Expired = spec.expired(now)
		detail.Covered = ScopeCovers(spec.Scopes, command)
		return detail
	}

	return detail
}

// ScopeCovers reports whether a scope list covers the requested capability.
func ScopeCovers(scopes []string, capability string) bool {
	for _, s := range scopes {
		if s == ScopeWildcard || s == capability {
			return true
		}
	}
	return false
}

// AllowsCapability is the second, independent scope check used for
// optional writes. Runs without any token keep every capability; a token-
// scoped run keeps only what the token grants.
func (d *Decision) AllowsCapability(capability string) bool {
	if d.Token == nil || !d.Token.Used {
		return true
	}
	return ScopeCovers(d.Token.Scopes, capability)
}

// HashToken produces the sha256 fingerprint recorded in governance
// metadata; the token value itself is never persisted.
func HashToken(presented string) string {
	if presented == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(presented))
	return hex.EncodeToString(sum[:8])
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
