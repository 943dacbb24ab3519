package extraction

import (
	"fmt"
	"strings"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
)

// Target overrides the configured environment for one extraction. Empty
// fields fall back to config.TargetConfig.
type Target struct {
	Branch       string `json:"branch,omitempty"`
	Host         string `json:"host,omitempty"`
	Path         string `json:"path,omitempty"`
	QueryPrefix  string `json:"queryPrefix,omitempty"`
	FeatureFlags string `json:"featureFlags,omitempty"`
}

// Resolve merges t over the configured defaults
func (t Target) Resolve(cfg config.TargetConfig) config.TargetConfig {
	out := cfg
	if t.Branch != "" {
		out.Branch = t.Branch
	}
	if t.Host != "" {
		out.Host = t.Host
	}
	if t.Path != "" {
		out.Path = t.Path
	}
	if t.QueryPrefix != "" {
		out.QueryPrefix = t.QueryPrefix
	}
	if t.FeatureFlags != "" {
		out.FeatureFlags = t.FeatureFlags
	}
	return out
}

// BaseHost returns the host override, or the branch host derived from the
// template, without a trailing slash.
func BaseHost(cfg config.TargetConfig) (string, error) {
	if cfg.Host != "" {
		return strings.TrimRight(cfg.Host, "/"), nil
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	if err := domain.ValidateBranch(branch); err != nil {
		return "", err
	}
	if !strings.Contains(cfg.HostTemplate, "%s") {
		return "", domain.ErrInvalidInput("hostTemplate", "must contain %s")
	}
	return strings.TrimRight(fmt.Sprintf(cfg.HostTemplate, branch), "/"), nil
}

// BuildURL returns {host}{path}[?{flags}]{prefix}{cardID}
func BuildURL(cfg config.TargetConfig, cardID string) (string, error) {
	host, err := BaseHost(cfg)
	if err != nil {
		return "", err
	}

	path := cfg.Path
	if path == "" {
		path = "/studio.html"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	prefix := cfg.QueryPrefix
	if prefix == "" {
		prefix = "#page=content&path=nala&query="
	}

	var b strings.Builder
	b.WriteString(host)
	b.WriteString(path)
	if flags := strings.TrimPrefix(cfg.FeatureFlags, "?"); flags != "" {
		b.WriteString("?")
		b.WriteString(flags)
	}
	b.WriteString(prefix)
	b.WriteString(cardID)
	return b.String(), nil
}
