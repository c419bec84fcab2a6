package repo

import "context"

// PolicyRepo answers whether an actor may edit other members' records
type PolicyRepo interface {
	CanEditOthers(ctx context.Context, actorID string) (bool, error)
}
