package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	KeyringServiceName = "time-capsule-app"
	AccessKeyItem      = "aws-access-key"
	SecretKeyItem      = "aws-secret-key"
	RegionItem         = "aws-region"
)

// CredentialProvider defines the interface for managing AWS credentials
type CredentialProvider interface {
	GetCredentials(ctx context.Context) (aws.Credentials, error)
	StoreCredentials(accessKey, secretKey, region string) error
	ValidateCredentials(ctx context.Context) error
	ClearCredentials() error
	GetRegion() (string, error)
	SetRegion(region string) error
}

// SecureCredentialProvider implements CredentialProvider using OS keychain
type SecureCredentialProvider struct {
	keyring keyring.Keyring
}

// NewSecureCredentialProvider creates a new SecureCredentialProvider
func NewSecureCredentialProvider() (*SecureCredentialProvider, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: KeyringServiceName,
		// Allow fallback to file backend for testing
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.FileBackend,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &SecureCredentialProvider{
		keyring: ring,
	}, nil
}

// StoreCredentials stores AWS credentials securely in the OS keychain
func (p *SecureCredentialProvider) StoreCredentials(accessKey, secretKey, region string) error {
	if accessKey == "" || secretKey == "" {
		return errors.New("access key and secret key cannot be empty")
	}

	if err := p.keyring.Set(keyring.Item{
		Key:  AccessKeyItem,
		Data: []byte(accessKey),
	}); err != nil {
		return fmt.Errorf("failed to store access key: %w", err)
	}

	if err := p.keyring.Set(keyring.Item{
		Key:  SecretKeyItem,
		Data: []byte(secretKey),
	}); err != nil {
		return fmt.Errorf("failed to store secret key: %w", err)
	}

	if region != "" {
		if err := p.SetRegion(region); err != nil {
			return fmt.Errorf("failed to store region: %w", err)
		}
	}

	return nil
}

// GetCredentials retrieves AWS credentials from the keychain
func (p *SecureCredentialProvider) GetCredentials(ctx context.Context) (aws.Credentials, error) {
	// Try to get credentials from keychain first
	accessKeyItem, err := p.keyring.Get(AccessKeyItem)
	if err != nil {
		// If not found in keychain, try AWS credential chain
		return p.getCredentialsFromChain(ctx)
	}

	secretKeyItem, err := p.keyring.Get(SecretKeyItem)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to retrieve secret key from keychain: %w", err)
	}

	return aws.Credentials{
		AccessKeyID:     string(accessKeyItem.Data),
		SecretAccessKey: string(secretKeyItem.Data),
		Source:          "time-capsule-app-keychain",
	}, nil
}

// getCredentialsFromChain attempts to get credentials using AWS credential chain
func (p *SecureCredentialProvider) getCredentialsFromChain(ctx context.Context) (aws.Credentials, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to retrieve credentials from AWS credential chain: %w", err)
	}

	return creds, nil
}

// ValidateCredentials validates the stored credentials by making a test AWS API call
func (p *SecureCredentialProvider) ValidateCredentials(ctx context.Context) error {
	creds, err := p.GetCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}

	region, err := p.GetRegion()
	if err != nil {
		region = "us-east-1" // Default region
	}

	cfg := aws.Config{
		Credentials: credentials.StaticCredentialsProvider{
			Value: creds,
		},
		Region: region,
	}

	stsClient := sts.NewFromConfig(cfg)

	// Set a timeout for the validation call
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("credential validation failed: %w", err)
	}

	return nil
}

// ClearCredentials removes all stored credentials from the keychain
func (p *SecureCredentialProvider) ClearCredentials() error {
	// Ignore missing items; clearing an empty keychain is a no-op
	_ = p.keyring.Remove(AccessKeyItem)
	_ = p.keyring.Remove(SecretKeyItem)
	_ = p.keyring.Remove(RegionItem)

	return nil
}

// GetRegion retrieves the stored AWS region
func (p *SecureCredentialProvider) GetRegion() (string, error) {
	item, err := p.keyring.Get(RegionItem)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "us-east-1", nil // Default region
		}
		return "", fmt.Errorf("failed to retrieve region: %w", err)
	}

	return string(item.Data), nil
}

// SetRegion stores the AWS region
func (p *SecureCredentialProvider) SetRegion(region string) error {
	if region == "" {
		return errors.New("region cannot be empty")
	}

	if err := p.keyring.Set(keyring.Item{
		Key:  RegionItem,
		Data: []byte(region),
	}); err != nil {
		return fmt.Errorf("failed to store region: %w", err)
	}

	return nil
}
