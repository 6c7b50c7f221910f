package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// ClientSecrets is the "installed" client JSON downloaded from Google Cloud.
type ClientSecrets struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		AuthURI      string `json:"auth_uri"`
		TokenURI     string `json:"token_uri"`
	} `json:"installed"`
}

// LoadClientSecrets resolves OAuth client credentials. Precedence: the
// secrets file at path, then the environment, then build-time values.
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	var secrets ClientSecrets

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read client secrets file '%s': %w", path, err)
		}
		if err := json.Unmarshal(data, &secrets); err != nil {
			return nil, fmt.Errorf("failed to parse client secrets JSON: %w", err)
		}
	}

	if secrets.Installed.ClientID == "" {
		secrets.Installed.ClientID = firstNonEmpty(os.Getenv(EnvClientID), GoogleOAuthClientID)
		secrets.Installed.ClientSecret = firstNonEmpty(os.Getenv(EnvClientSecret), GoogleOAuthClientSecret)
	}

	if secrets.Installed.ClientID == "" {
		return nil, fmt.Errorf("no OAuth client configured: pass --client-secrets or set %s", EnvClientID)
	}
	return &secrets, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
