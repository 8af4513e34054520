package awssecrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretsManager implements SecretsManagerAPI for testing
type mockSecretsManager struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManager) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getSecretValueFunc(ctx, params)
}

func secretReturning(value string) *mockSecretsManager {
	return &mockSecretsManager{
		getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{
				Name:         params.SecretId,
				SecretString: aws.String(value),
			}, nil
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr string
	}{
		{
			name:   "raw dsn",
			secret: "user:pw@tcp(db:3306)/governance?parseTime=true\n",
			want:   "user:pw@tcp(db:3306)/governance?parseTime=true",
		},
		{
			name:   "json document",
			secret: `{"dsn": "postgres://user:pw@db/governance", "username": "user"}`,
			want:   "postgres://user:pw@db/governance",
		},
		{
			name:    "json without dsn",
			secret:  `{"username": "user"}`,
			wantErr: `no "dsn" key`,
		},
		{
			name:    "malformed json",
			secret:  `{"dsn": `,
			wantErr: "failed to parse secret JSON",
		},
		{
			name:    "empty",
			secret:  "",
			wantErr: "has no string value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDSNResolverWithAPI(secretReturning(tt.secret), nil)
			got, err := r.Resolve(context.Background(), "prod/governance")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePassesSecretID(t *testing.T) {
	var requested string
	api := &mockSecretsManager{
		getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			requested = aws.ToString(params.SecretId)
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("file:policy.db")}, nil
		},
	}
	_, err := NewDSNResolverWithAPI(api, nil).Resolve(context.Background(), "prod/governance")
	require.NoError(t, err)
	assert.Equal(t, "prod/governance", requested)
}

func TestResolveErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		api := &mockSecretsManager{
			getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "no such secret"}
			},
		}
		_, err := NewDSNResolverWithAPI(api, nil).Resolve(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("access denied", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}
		api := &mockSecretsManager{
			getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, denied
			},
		}
		_, err := NewDSNResolverWithAPI(api, nil).Resolve(context.Background(), "locked")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrSecretNotFound))
		assert.ErrorIs(t, err, denied)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewDSNResolverWithAPI(secretReturning("x"), nil).Resolve(context.Background(), "")
		assert.Error(t, err)
	})
}
