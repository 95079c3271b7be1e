package config

import (
	"os"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"searchreporting/internal/common"
	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
	"searchreporting/pkg/models"
)

// KeyringService is the OS keyring service holding Snowflake passwords, keyed by user.
const KeyringService = "searchreporting"

// ReadCredentialFile reads a credential file, warning when it is readable by
// other users.
func ReadCredentialFile(path string, logger *observability.Logger) ([]byte, error) {
	cleaned, err := common.ResolvePath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid credential file path").
			WithContext("file", path)
	}

	info, err := os.Stat(cleaned)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "Credential file not found").
			WithContext("file", cleaned)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigPermission, "Cannot access credential file").
			WithContext("file", cleaned)
	}

	if !common.IsPrivate(info.Mode()) && logger != nil {
		logger.WarnWithFields("Credential file is readable by other users", map[string]interface{}{
			"file": cleaned,
			"mode": info.Mode().Perm().String(),
		})
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigPermission, "Failed to read credential file").
			WithContext("file", cleaned)
	}
	return data, nil
}

// LoadSnowflakeCredentials parses snowflake.yaml. An empty sf_password is
// looked up in the OS keyring under sf_user.
func LoadSnowflakeCredentials(path string, logger *observability.Logger) (*models.SnowflakeCredentials, error) {
	data, err := ReadCredentialFile(path, logger)
	if err != nil {
		return nil, err
	}

	var creds models.SnowflakeCredentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse Snowflake credentials").
			WithContext("file", path)
	}

	if creds.Account == "" {
		return nil, errors.ConfigError("sf_account is required", "sf_account")
	}
	if creds.User == "" {
		return nil, errors.ConfigError("sf_user is required", "sf_user")
	}

	if creds.Password == "" {
		password, err := keyring.Get(KeyringService, creds.User)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigMissing, "sf_password is empty and no keyring entry was found").
				WithContext("user", creds.User).
				WithSuggestions(
					"Set sf_password in the credential file",
					"Store the password in the OS keyring under service '"+KeyringService+"'",
				)
		}
		creds.Password = password
	}

	return &creds, nil
}
