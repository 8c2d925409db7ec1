// Package secrets resolves boot-time secrets from Google Secret Manager.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Resolver reads secret values from Secret Manager.
type Resolver struct {
	client    *secretmanager.Client
	projectID string
}

// NewResolver creates a Resolver for the given GCP project.
func NewResolver(ctx context.Context, projectID string) (*Resolver, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &Resolver{client: client, projectID: projectID}, nil
}

// Get returns the latest version of the named secret.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, name)
	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

// Close releases the underlying client.
func (r *Resolver) Close() error {
	return r.client.Close()
}
