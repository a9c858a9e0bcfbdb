package constant

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Query key scopes, shared by cache reads and invalidation
const (
	RulesQueryKey         = "/rules"
	RuleProvidersQueryKey = "/providers/rules"
)

// APIConfig is the connection info of a Clash-compatible external controller
type APIConfig struct {
	BaseURL string `yaml:"url" json:"baseURL"`
	Secret  string `yaml:"secret" json:"secret"`
}

// URL joins path onto the controller base url
func (c APIConfig) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// CacheKey identifies the controller inside a query key.
// The secret is hashed so it never shows up in logs or metrics labels.
func (c APIConfig) CacheKey() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.Secret == "" {
		return base
	}
	sum := sha256.Sum256([]byte(c.Secret))
	return base + "#" + hex.EncodeToString(sum[:4])
}
