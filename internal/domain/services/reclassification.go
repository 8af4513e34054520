package services

import (
	"context"
	"fmt"

	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// Reclassifier moves an artifact's approval rows between the allow-list and
// the vendor-license partition. The move is lossy: going to the allow-list
// drops vendor and contract, coming back leaves them empty.
type Reclassifier struct{}

// NewReclassifier creates a reclassifier
func NewReclassifier() *Reclassifier {
	return &Reclassifier{}
}

// Migrate copies the artifact's approvals into the partition selected by
// toVendor and deletes them from the other one. It must run inside the same
// transaction that saves the artifact. It returns the number of rows moved.
func (r *Reclassifier) Migrate(ctx context.Context, q repositories.Queries, artifactID int64, toVendor bool) (int64, error) {
	filter := repositories.ApprovalFilter{ArtifactID: artifactID}

	if toVendor {
		copied, err := q.CopyAllowedToLicensed(ctx, artifactID)
		if err != nil {
			return 0, fmt.Errorf("copy allowed to licensed: %w", err)
		}
		if _, err := q.DeleteAllowed(ctx, filter); err != nil {
			return 0, fmt.Errorf("delete allowed: %w", err)
		}
		return copied, nil
	}

	copied, err := q.CopyLicensedToAllowed(ctx, artifactID)
	if err != nil {
		return 0, fmt.Errorf("copy licensed to allowed: %w", err)
	}
	if _, err := q.DeleteLicensed(ctx, filter); err != nil {
		return 0, fmt.Errorf("delete licensed: %w", err)
	}
	return copied, nil
}
