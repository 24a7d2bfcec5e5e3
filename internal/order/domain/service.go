package domain

import "context"

type ConsumeRequest struct {
	OrderID  string
	Location string
	Actor    string
}

// Service covers the consumption event: the only flow allowed to move an
// order to CONSUMED. Used by the scan surface and by auto-confirmation.
type Service interface {
	Consume(ctx context.Context, req ConsumeRequest) error
}
