package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks environment variables whose value is an SSM path.
// DATABASE_URL_SSM_PARAM=/prod/relaunch/database/url resolves DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmResolveTimeout bounds the whole SSM resolution step.
const ssmResolveTimeout = 30 * time.Second

// sealingKeyLength is the required decoded length of CREDENTIAL_SEALING_KEY.
const sealingKeyLength = 32

// loaderDeps holds the process-environment functions used by the loader so
// tests can run without mutating global state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the service configuration.
//
// Sequence:
//  1. Force the process timezone to UTC.
//  2. Load a .env file if present (it never overrides real env vars).
//  3. Outside APP_ENV=local, resolve *_SSM_PARAM variables through provider.
//  4. Populate Config via envconfig struct tags.
//  5. Normalize list values and attach build metadata.
//  6. Validate struct tags and cross-field rules.
//
// provider may be nil for local development.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	normalize(&cfg)
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := validateSealingKey(cfg.Security.CredentialSealingKey); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolveSecrets performs only the SSM resolution step. Worker entrypoints
// that need secrets before the full Config is built call it early in main.
// It is a no-op when APP_ENV is "local".
func ResolveSecrets(provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// normalize lowercases and trims the domain allow-list so that policy checks
// can compare domains directly.
func normalize(cfg *Config) {
	domains := make([]string, 0, len(cfg.Email.MailerSendAllowedDomains))
	for _, d := range cfg.Email.MailerSendAllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	cfg.Email.MailerSendAllowedDomains = domains
	cfg.Email.SendGridBaseURL = strings.TrimSuffix(cfg.Email.SendGridBaseURL, "/")
	cfg.Email.MailerSendBaseURL = strings.TrimSuffix(cfg.Email.MailerSendBaseURL, "/")
	cfg.Email.ResendBaseURL = strings.TrimSuffix(cfg.Email.ResendBaseURL, "/")
}

// validateSealingKey checks that a configured sealing key decodes to exactly
// 32 bytes. An empty key is allowed and disables sealing.
func validateSealingKey(key SecretString) error {
	if key.IsEmpty() {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(key.Unmask())
	if err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "CREDENTIAL_SEALING_KEY must be base64 encoded",
			Err:     err,
		}
	}
	if len(raw) != sealingKeyLength {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("CREDENTIAL_SEALING_KEY must decode to %d bytes, got %d", sealingKeyLength, len(raw)),
		}
	}
	return nil
}

// resolveSSMParams scans the environment for *_SSM_PARAM variables, fetches
// their values in one batch, and injects them under the target name. A target
// that is already set wins over SSM (Env > Dotenv > SSM).
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths, targets []string

	for _, entry := range deps.environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || value == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		pathToTarget[value] = target
		paths = append(paths, value)
		targets = append(targets, target)
	}

	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, pathToTarget[path])
			continue
		}
		if err := deps.setEnv(pathToTarget[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", pathToTarget[path]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
