package config

import "context"

// SecretProvider resolves secret values by path. SSMProvider serves deployed
// environments and EnvVarProvider serves local development.
type SecretProvider interface {
	// GetParametersBatch returns a map of path -> plaintext value for every
	// key it could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
