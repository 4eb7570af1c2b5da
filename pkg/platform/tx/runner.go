package tx

import "context"

// Direct runs the function without any transaction. It backs in-memory store
// configurations, where services compensate for partial failure themselves.
type Direct struct{}

func (Direct) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
