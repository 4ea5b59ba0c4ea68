package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretSource returns the latest payload of a named secret.
type SecretSource interface {
	Access(ctx context.Context, name string) (string, error)
}

// GoogleSecrets reads secrets from Google Secret Manager.
type GoogleSecrets struct {
	client  *secretmanager.Client
	project string
}

// NewGoogleSecrets opens a Secret Manager client for the given project.
func NewGoogleSecrets(ctx context.Context, project string, opts ...option.ClientOption) (*GoogleSecrets, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	return &GoogleSecrets{client: client, project: project}, nil
}

// Access fetches the latest version of the secret.
func (g *GoogleSecrets) Access(ctx context.Context, name string) (string, error) {
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.project, name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

// Close releases the underlying client.
func (g *GoogleSecrets) Close() error {
	return g.client.Close()
}

// ResolveSecrets fills empty credential fields from src. Secret names are the
// lower-kebab form of the env var (JWT_SECRET -> jwt-secret).
func ResolveSecrets(ctx context.Context, cfg *Config, src SecretSource) error {
	if src == nil {
		return nil
	}
	targets := map[string]*string{
		"JWT_SECRET":           &cfg.JWTSecret,
		"STRIPE_SECRET_KEY":    &cfg.StripeSecretKey,
		"GENERATION_API_KEY":   &cfg.GenerationAPIKey,
		"GOOGLE_CLIENT_SECRET": &cfg.GoogleClientSecret,
	}
	for envName, field := range targets {
		if strings.TrimSpace(*field) != "" {
			continue
		}
		val, err := src.Access(ctx, secretName(envName))
		if err != nil {
			return err
		}
		*field = val
	}
	return nil
}

// LoadWithSecrets is Load followed by Secret Manager resolution when
// SECRETS_GCP_PROJECT is set.
func LoadWithSecrets(ctx context.Context) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.SecretsProject) == "" {
		return cfg, nil
	}
	secrets, err := NewGoogleSecrets(ctx, cfg.SecretsProject, cfg.GCPClientOptions()...)
	if err != nil {
		return Config{}, err
	}
	defer secrets.Close()
	if err := ResolveSecrets(ctx, &cfg, secrets); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func secretName(envName string) string {
	return strings.ReplaceAll(strings.ToLower(envName), "_", "-")
}

// GCPClientOptions returns the client options shared by Google Cloud clients.
func (c Config) GCPClientOptions() []option.ClientOption {
	if path := strings.TrimSpace(c.GCPCredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}
