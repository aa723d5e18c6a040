// Package policy implements the governance gate. Every command passes
// through Evaluate before anything else runs; a deny decision means zero
// filesystem writes anywhere, so the gate itself never touches disk.
//
// Policy-file syntax is owned by the loader; only the resolved semantics
// (enabled, deny list, allow list, token definitions) are modeled here.
package policy

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"scout/internal/errors"
	"scout/internal/paths"
)

// Reason is a stable deny/allow reason code.
type Reason string

const (
	// ReasonAllowed means the command may proceed
	ReasonAllowed Reason = "allowed"
	// ReasonTokenAllowed means an allow-list miss was overridden by a
	// valid, correctly scoped permit token
	ReasonTokenAllowed Reason = "allowed_by_token"
	// ReasonDisabled means governance is not enabled for this installation
	ReasonDisabled Reason = "policy_disabled"
	// ReasonDenyList means the canonical target root matched the deny list
	ReasonDenyList Reason = "deny_list_match"
	// ReasonAllowList means a non-empty allow list does not contain the root
	ReasonAllowList Reason = "allow_list_miss"
	// ReasonParseError means the policy source exists but could not be
	// parsed. Fail-closed: a broken policy never default-allows.
	ReasonParseError Reason = "policy_parse_error"
)

// Policy holds the resolved governance semantics.
type Policy struct {
	Enabled bool        `json:"enabled" mapstructure:"enabled"`
	Deny    []string    `json:"deny,omitempty" mapstructure:"deny"`
	Allow   []string    `json:"allow,omitempty" mapstructure:"allow"`
	Tokens  []TokenSpec `json:"tokens,omitempty" mapstructure:"tokens"`

	// Hash fingerprints the loaded policy content for governance metadata
	Hash string `json:"-" mapstructure:"-"`
	// Source is the path the policy was loaded from
	Source string `json:"-" mapstructure:"-"`
}

// Decision is the outcome of the governance gate.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  Reason       `json:"reason"`
	Command string       `json:"command"`
	Token   *TokenDetail `json:"token,omitempty"`
	// PolicyHash identifies the policy content that produced this decision
	PolicyHash string `json:"policyHash,omitempty"`
}

// TokenDetail records how a permit token influenced the decision.
type TokenDetail struct {
	Used    bool     `json:"used"`
	Scopes  []string `json:"scopes,omitempty"`
	Expired bool     `json:"expired,omitempty"`
	Covered bool     `json:"covered,omitempty"`
}

// SourceEnv names the environment override for the policy source path.
const SourceEnv = "SCOUT_POLICY"

// ResolveSource picks the policy file to load. Precedence: explicit flag >
// SCOUT_POLICY env var > policy.{json,yaml,yml,toml} in the global-state
// directory. An empty return means no policy source exists.
func ResolveSource(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(SourceEnv); env != "" {
		return env
	}
	stateDir, err := paths.GetStateDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"policy.json", "policy.yaml", "policy.yml", "policy.toml"} {
		candidate := filepath.Join(stateDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load reads and resolves a policy source. A missing source yields a
// disabled policy; an unreadable or unparseable source yields ConfigError.
func Load(source string) (*Policy, error) {
	if source == "" {
		return &Policy{Enabled: false}, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{Enabled: false}, nil
		}
		return nil, errors.New(errors.ConfigError, "failed to read policy source", err)
	}

	v := viper.New()
	ext := filepath.Ext(source)
	switch ext {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".toml":
		v.SetConfigType("toml")
	default:
		v.SetConfigType("json")
	}
	v.SetConfigFile(source)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(errors.ConfigError, "failed to parse policy source", err)
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, errors.New(errors.ConfigError, "failed to decode policy source", err)
	}

	for i := range p.Tokens {
		if err := p.Tokens[i].validate(); err != nil {
			return nil, errors.New(errors.ConfigError, "invalid token definition in policy", err)
		}
	}

	p.Hash = hashContent(data)
	p.Source = source
	return &p, nil
}

// Evaluate applies the resolution order from the governance contract:
// disabled, parse error (handled by Load), deny list, allow list with
// token override.
func Evaluate(p *Policy, targetRoot, command, presentedToken string) Decision {
	d := Decision{Command: command}
	if p != nil {
		d.PolicyHash = p.Hash
	}

	if p == nil || !p.Enabled {
		d.Reason = ReasonDisabled
		return d
	}

	canonical, err := paths.CanonicalRoot(targetRoot)
	if err != nil {
		// An unresolvable target cannot be checked against path lists,
		// so it cannot be allowed.
		d.Reason = ReasonDenyList
		return d
	}

	for _, deny := range p.Deny {
		if matchesRoot(deny, canonical) {
			d.Reason = ReasonDenyList
			return d
		}
	}

	if len(p.Allow) > 0 && !rootInList(p.Allow, canonical) {
		if presentedToken != "" {
			detail := verifyToken(p, presentedToken, command)
			d.Token = detail
			if detail.Used && !detail.Expired && detail.Covered {
				d.Allowed = true
				d.Reason = ReasonTokenAllowed
				return d
			}
		}
		d.Reason = ReasonAllowList
		return d
	}

	d.Allowed = true
	d.Reason = ReasonAllowed
	if presentedToken != "" {
		// Token still verified so optional-capability scopes apply.
		d.Token = verifyToken(p, presentedToken, command)
	}
	return d
}

// matchesRoot reports whether a policy path entry covers the canonical
// root, either exactly or as an ancestor directory.
func matchesRoot(entry, canonical string) bool {
	resolved, err := paths.CanonicalRoot(entry)
	if err != nil {
		// Entry may point at a path that no longer exists; fall back to a
		// lexical clean so stale deny entries keep denying.
		resolved = filepath.Clean(entry)
	}
	if resolved == canonical {
		return true
	}
	rel, err := filepath.Rel(resolved, canonical)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel)
}

func rootInList(list []string, canonical string) bool {
	for _, entry := range list {
		if matchesRoot(entry, canonical) {
			return true
		}
	}
	return false
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
