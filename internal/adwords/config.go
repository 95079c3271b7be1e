package adwords

import (
	"context"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v3"

	"searchreporting/internal/common"
	"searchreporting/internal/config"
	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

// Scope is the OAuth2 scope of the AdWords API.
const Scope = "https://www.googleapis.com/auth/adwords"

// ClientConfig mirrors the adwords section of googleads.yaml.
type ClientConfig struct {
	DeveloperToken   string `yaml:"developer_token"`
	ClientCustomerID string `yaml:"client_customer_id"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	RefreshToken     string `yaml:"refresh_token"`
	UserAgent        string `yaml:"user_agent"`
	PrivateKeyFile   string `yaml:"path_to_private_key_file"`
	DelegatedAccount string `yaml:"delegated_account"`
}

type clientConfigFile struct {
	AdWords *ClientConfig `yaml:"adwords"`
}

// LoadClientConfig reads and validates a googleads.yaml file.
func LoadClientConfig(path string, logger *observability.Logger) (*ClientConfig, error) {
	data, err := config.ReadCredentialFile(path, logger)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseClientConfig(data)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr.WithContext("file", path)
		}
		return nil, err
	}
	return cfg, nil
}

// ParseClientConfig decodes googleads.yaml content.
func ParseClientConfig(data []byte) (*ClientConfig, error) {
	var file clientConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse AdWords client configuration")
	}
	if file.AdWords == nil {
		return nil, errors.ConfigError("Missing 'adwords' section", "adwords")
	}

	cfg := file.AdWords
	if cfg.UserAgent == "" {
		cfg.UserAgent = "searchreporting"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that one complete authentication method is configured.
func (c *ClientConfig) Validate() error {
	if c.DeveloperToken == "" {
		return errors.ConfigError("developer_token is required", "adwords.developer_token")
	}
	if c.PrivateKeyFile != "" {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return errors.ConfigError(
			"client_id, client_secret and refresh_token are required unless path_to_private_key_file is set",
			"adwords.refresh_token",
		)
	}
	return nil
}

// TokenSource returns an OAuth2 token source from the installed-app refresh
// token, or from the service account key when one is configured.
func (c *ClientConfig) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if c.PrivateKeyFile != "" {
		path, err := common.ResolvePath(c.PrivateKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid private key path").
				WithContext("file", c.PrivateKeyFile)
		}
		data, err := os.ReadFile(path) // #nosec G304 - path is validated
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Failed to read service account key").
				WithContext("file", path)
		}

		jwtConfig, err := google.JWTConfigFromJSON(data, Scope)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Invalid service account key").
				WithContext("file", path)
		}
		jwtConfig.Subject = c.DelegatedAccount
		return jwtConfig.TokenSource(ctx), nil
	}

	oauthConfig := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{Scope},
	}
	return oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}), nil
}
