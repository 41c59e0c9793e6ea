package storage

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the identifier used for all adsctl credentials in the
	// system keyring.
	ServiceName = "adsctl"

	// indexKey is the special keyring entry holding the credential index.
	indexKey = "__adsctl_index__"

	// KeyAdsAPI and friends are the well-known credential keys.
	KeyAdsAPI      = "google-ads-api"
	KeyMerchantAPI = "merchant-api"
	KeyApprover    = "approver-identity"
)

// AdsAPICredentials is the structured credential for the Google Ads API.
type AdsAPICredentials struct {
	DeveloperToken  string `json:"developer_token"`
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	RefreshToken    string `json:"refresh_token"`
	LoginCustomerID string `json:"login_customer_id,omitempty"`
}

// ApproverIdentity is the recorded identity stamped onto plan approvals.
type ApproverIdentity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CredentialStore defines the interface for secure credential storage.
type CredentialStore interface {
	// Set stores a credential securely
	Set(key string, value string) error
	// Get retrieves a credential
	Get(key string) (string, error)
	// Delete removes a credential
	Delete(key string) error
	// List returns all credential keys (not the values)
	List() ([]string, error)
}

// KeyringCredentialStore implements CredentialStore using the system keyring.
// - macOS: Uses Keychain
// - Windows: Uses Credential Manager
// - Linux: Uses Secret Service (GNOME Keyring, KWallet)
type KeyringCredentialStore struct {
	service string
}

// NewKeyringCredentialStore creates a new keyring-based credential store.
func NewKeyringCredentialStore() *KeyringCredentialStore {
	return &KeyringCredentialStore{
		service: ServiceName,
	}
}

// Set stores a credential securely in the system keyring.
// The key is used as the account name, and value is the password.
func (s *KeyringCredentialStore) Set(key string, value string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	err := keyring.Set(s.service, key, value)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// The credential is stored even when the index update fails, so a
	// failure here is not surfaced.
	_ = s.addToIndex(key)

	return nil
}

// Get retrieves a credential from the system keyring.
func (s *KeyringCredentialStore) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("credential key cannot be empty")
	}

	value, err := keyring.Get(s.service, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("credential not found: %s", key)
		}
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}

	return value, nil
}

// Delete removes a credential from the system keyring.
func (s *KeyringCredentialStore) Delete(key string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	err := keyring.Delete(s.service, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return fmt.Errorf("credential not found: %s", key)
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	_ = s.removeFromIndex(key)

	return nil
}

// List returns all credential keys stored by adsctl.
// The index is stored as a special keyring entry, since the OS keyrings do
// not support enumeration.
func (s *KeyringCredentialStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			// No credentials stored yet
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve credential index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential index: %w", err)
	}

	return keys, nil
}

// SetStructured stores a structured credential serialized as JSON.
func (s *KeyringCredentialStore) SetStructured(key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal credential data: %w", err)
	}

	return s.Set(key, string(jsonData))
}

// GetStructured retrieves and deserializes a structured credential.
func (s *KeyringCredentialStore) GetStructured(key string, dest interface{}) error {
	jsonData, err := s.Get(key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return fmt.Errorf("failed to unmarshal credential data: %w", err)
	}

	return nil
}

// Approver returns the stored approver identity, required before any plan or
// operation approval is recorded.
func (s *KeyringCredentialStore) Approver() (ApproverIdentity, error) {
	var id ApproverIdentity
	if err := s.GetStructured(KeyApprover, &id); err != nil {
		return ApproverIdentity{}, fmt.Errorf("no approver identity configured: %w", err)
	}
	if id.Email == "" {
		return ApproverIdentity{}, fmt.Errorf("stored approver identity has no email")
	}
	return id, nil
}

// SetApprover stores the approver identity.
func (s *KeyringCredentialStore) SetApprover(id ApproverIdentity) error {
	if id.Email == "" {
		return fmt.Errorf("approver identity requires an email")
	}
	return s.SetStructured(KeyApprover, id)
}

func (s *KeyringCredentialStore) addToIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k == key {
			return nil // Already in index
		}
	}

	keys = append(keys, key)

	return s.saveIndex(keys)
}

func (s *KeyringCredentialStore) removeFromIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}

	newKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != key {
			newKeys = append(newKeys, k)
		}
	}

	return s.saveIndex(newKeys)
}

func (s *KeyringCredentialStore) saveIndex(keys []string) error {
	indexJSON, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal credential index: %w", err)
	}

	err = keyring.Set(s.service, indexKey, string(indexJSON))
	if err != nil {
		return fmt.Errorf("failed to save credential index: %w", err)
	}

	return nil
}
