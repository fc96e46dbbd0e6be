package leader

import "context"

// Local is used by single-instance deployments where every instance leads.
type Local struct{}

func NewLocal() Local {
	return Local{}
}

func (Local) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Local) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Local) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}
