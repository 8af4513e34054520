// Package awssecrets resolves database connection strings stored in AWS Secrets Manager.
package awssecrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/ochairo/enforcer/internal/domain/interfaces"
)

// ErrSecretNotFound is returned when the secret id does not exist
var ErrSecretNotFound = errors.New("secret not found")

// SecretsManagerAPI is the subset of the Secrets Manager client the resolver uses
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// DSNResolver reads a DSN from a secret. The secret is either the raw DSN or a
// JSON object with a "dsn" key.
type DSNResolver struct {
	api    SecretsManagerAPI
	logger interfaces.Logger
}

// NewDSNResolver creates a resolver using the default AWS credential chain
func NewDSNResolver(ctx context.Context, logger interfaces.Logger) (*DSNResolver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDSNResolverWithAPI(secretsmanager.NewFromConfig(cfg), logger), nil
}

// NewDSNResolverWithAPI creates a resolver over an existing client
func NewDSNResolverWithAPI(api SecretsManagerAPI, logger interfaces.Logger) *DSNResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &DSNResolver{api: api, logger: logger}
}

// Resolve fetches the secret and extracts the DSN. Secret values are never logged.
func (r *DSNResolver) Resolve(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret id cannot be empty")
	}

	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
		}
		r.logger.Error("failed to read database secret",
			interfaces.F("secret", secretID),
			interfaces.Err(err),
		)
		return "", fmt.Errorf("failed to get secret %s: %w", secretID, err)
	}

	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", fmt.Errorf("secret %s has no string value", secretID)
	}

	dsn, err := extractDSN(value)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", secretID, err)
	}
	r.logger.Debug("database dsn resolved from secret", interfaces.F("secret", secretID))
	return dsn, nil
}

func extractDSN(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	var doc struct {
		DSN string `json:"dsn"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return "", fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	if doc.DSN == "" {
		return "", fmt.Errorf("secret JSON has no \"dsn\" key")
	}
	return doc.DSN, nil
}
