// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
//
// A Settings snapshot is taken once at session start and never re-read.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/warden-agent/warden/security"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig
	Agent    AgentConfig
	Security SecurityConfig
	Network  NetworkConfig
	Tools    ToolsConfig
	Storage  StorageConfig
}

// LLMConfig holds model provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// AgentConfig holds loop configuration.
type AgentConfig struct {
	MaxIterations int
	// WallClock bounds a whole turn. Zero disables it.
	WallClock time.Duration
}

// SecurityConfig holds validator and classifier configuration.
type SecurityConfig struct {
	TrustedRoots            []string
	ExternalAllowedRoots    []string
	ExcludedPatterns        []string
	RequireApproval         bool
	AllowSuspiciousOverride bool
}

// Policy converts the snapshot into a validator policy.
func (c SecurityConfig) Policy() security.Policy {
	return security.Policy{
		TrustedRoots:         c.TrustedRoots,
		ExternalAllowedRoots: c.ExternalAllowedRoots,
		ExcludedPatterns:     c.ExcludedPatterns,
		RequireApproval:      c.RequireApproval,
	}
}

// NetworkConfig holds retry and rate-limit configuration.
type NetworkConfig struct {
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	RequestsPerMinute int
	TokensPerMinute   int
}

// ToolsConfig holds tool execution configuration. Empty allowlists
// allow everything.
type ToolsConfig struct {
	TimeoutSecs    uint64
	MaxFileSize    int64
	FetchDomains   []string
	ShellAllowlist []string
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// DatabasePath is the SQLite file for conversations, memories and
	// the audit trail. Empty selects an in-memory database.
	DatabasePath string
}

// providerInfo holds configuration for a specific provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"xai":       {"XAI_MODEL", "grok-4", "XAI_API_KEY"},
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"grok":   "xai",
	"x.ai":   "xai",
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from
// environment variables. Returns an error if the provider is unknown or
// environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("AGENT_MAX_ITERATIONS", 10)
	if err != nil {
		return Settings{}, err
	}

	wallClockSecs, err := getEnvInt("AGENT_WALL_CLOCK_SECS", 0)
	if err != nil {
		return Settings{}, err
	}

	securityCfg, err := loadSecurity()
	if err != nil {
		return Settings{}, err
	}

	network, err := loadNetwork()
	if err != nil {
		return Settings{}, err
	}

	toolTimeout, err := getEnvUint64("TOOL_TIMEOUT_SECS", 30)
	if err != nil {
		return Settings{}, err
	}

	maxFileSize, err := getEnvInt64("TOOL_MAX_FILE_SIZE", 1024*1024)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Agent: AgentConfig{
			MaxIterations: maxIterations,
			WallClock:     time.Duration(wallClockSecs) * time.Second,
		},
		Security: securityCfg,
		Network:  network,
		Tools: ToolsConfig{
			TimeoutSecs:    toolTimeout,
			MaxFileSize:    maxFileSize,
			FetchDomains:   getEnvList("WARDEN_FETCH_DOMAINS"),
			ShellAllowlist: getEnvList("WARDEN_SHELL_ALLOWLIST"),
		},
		Storage: StorageConfig{
			DatabasePath: os.Getenv("WARDEN_DB_PATH"),
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// loadSecurity builds the security snapshot. The working directory is
// always a trusted root.
func loadSecurity() (SecurityConfig, error) {
	workdir, err := os.Getwd()
	if err != nil {
		return SecurityConfig{}, fmt.Errorf("resolve working directory: %w", err)
	}

	trusted := getEnvPathList("WARDEN_TRUSTED_ROOTS")
	trusted = append(trusted, workdir)

	excluded := getEnvList("WARDEN_EXCLUDED_PATTERNS")
	if len(excluded) == 0 {
		excluded = security.DefaultExcludedPatterns()
	}

	requireApproval, err := getEnvBool("WARDEN_REQUIRE_APPROVAL", true)
	if err != nil {
		return SecurityConfig{}, err
	}

	allowSuspicious, err := getEnvBool("WARDEN_ALLOW_SUSPICIOUS", false)
	if err != nil {
		return SecurityConfig{}, err
	}

	return SecurityConfig{
		TrustedRoots:            trusted,
		ExternalAllowedRoots:    getEnvPathList("WARDEN_EXTERNAL_ROOTS"),
		ExcludedPatterns:        excluded,
		RequireApproval:         requireApproval,
		AllowSuspiciousOverride: allowSuspicious,
	}, nil
}

// loadNetwork builds the resilience snapshot.
func loadNetwork() (NetworkConfig, error) {
	maxRetries, err := getEnvInt("NET_MAX_RETRIES", 3)
	if err != nil {
		return NetworkConfig{}, err
	}

	baseMs, err := getEnvInt("NET_BACKOFF_BASE_MS", 1000)
	if err != nil {
		return NetworkConfig{}, err
	}

	maxMs, err := getEnvInt("NET_BACKOFF_MAX_MS", 60000)
	if err != nil {
		return NetworkConfig{}, err
	}

	requestsPerMin, err := getEnvInt("RATE_MAX_REQUESTS_PER_MIN", 60)
	if err != nil {
		return NetworkConfig{}, err
	}

	tokensPerMin, err := getEnvInt("RATE_MAX_TOKENS_PER_MIN", 100000)
	if err != nil {
		return NetworkConfig{}, err
	}

	return NetworkConfig{
		MaxRetries:        maxRetries,
		BackoffBase:       time.Duration(baseMs) * time.Millisecond,
		BackoffMax:        time.Duration(maxMs) * time.Millisecond,
		RequestsPerMinute: requestsPerMin,
		TokensPerMinute:   tokensPerMin,
	}, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvUint64(key string, defaultVal uint64) (uint64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvPathList splits a path list on the OS list separator, falling
// back to commas, and cleans each entry.
func getEnvPathList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	sep := string(os.PathListSeparator)
	if !strings.Contains(val, sep) {
		sep = ","
	}
	var out []string
	for _, part := range strings.Split(val, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, filepath.Clean(part))
		}
	}
	return out
}
