package payments

import (
	"context"
	"time"
)

// Sandbox approves every charge after Delay, standing in for a real gateway
// in development. Declined, when set, decides which charges fail.
type Sandbox struct {
	Delay    time.Duration
	Declined func(ChargeRequest) bool
}

func (s Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ChargeResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	result := ChargeResult{Reference: "sandbox_" + req.PurchaseID, Status: StatusApproved}
	if s.Declined != nil && s.Declined(req) {
		result.Status = StatusDeclined
	}
	return result, nil
}
