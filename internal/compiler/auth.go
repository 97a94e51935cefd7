package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/trly/flow-ops/internal/deploy"
)

// OIDCConfig configures an authenticate-OIDC listener action. It works
// with any OIDC-compliant provider: the token, user-info and
// authorization endpoints are derived from the issuer URL.
type OIDCConfig struct {
	IssuerURL       string
	ClientID        string
	ClientSecretRef string
	Scopes          []string
	SessionTimeout  time.Duration
}

const defaultOIDCSessionTimeout = 24 * time.Hour

// AttachOIDC wraps an existing forwarding rule with an
// authenticate-OIDC action, so unauthenticated browser requests are
// redirected through the provider's login flow before reaching the
// target group. The rule is looked up by logical ID from a previously
// compiled service.
func (c *Compiler) AttachOIDC(ruleID string, cfg OIDCConfig) error {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.ClientSecretRef == "" {
		return &deploy.ConfigurationError{
			Field:  "oidc",
			Detail: "issuer URL, client ID and client secret reference are all required",
		}
	}

	rule, err := c.graph.Get(ruleID)
	if err != nil {
		return &deploy.ExternalResolutionFailure{Kind: "listener rule", ID: ruleID, Cause: err}
	}

	actions, ok := rule.Properties["Actions"].([]map[string]any)
	if !ok || len(actions) == 0 {
		return &deploy.ConfigurationError{
			Field:  "oidc",
			Detail: fmt.Sprintf("rule %q has no forwarding action to protect", ruleID),
		}
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile"}
	}

	timeout := cfg.SessionTimeout
	if timeout == 0 {
		timeout = defaultOIDCSessionTimeout
	}

	issuer := strings.TrimRight(cfg.IssuerURL, "/")
	authAction := map[string]any{
		"Type":                  "authenticate-oidc",
		"Issuer":                issuer + "/",
		"AuthorizationEndpoint": issuer + "/authorize",
		"TokenEndpoint":         issuer + "/oauth/token",
		"UserInfoEndpoint":      issuer + "/userinfo",
		"ClientID":              cfg.ClientID,
		"ClientSecretRef":       cfg.ClientSecretRef,
		"Scope":                 strings.Join(scopes, " "),
		"SessionCookieName":     "AWSELBAuthSessionCookie",
		"SessionTimeoutSeconds": int(timeout.Seconds()),
	}

	rule.Properties["Actions"] = append([]map[string]any{authAction}, actions...)
	return nil
}
