package domain

import (
	"context"
	"time"
)

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*ExpiringCode, error)
	Retrieve(ctx context.Context, code string) (*ExpiringCode, error)
	ExpireCodes(ctx context.Context) (int64, error)
}

type GenerateRequest struct {
	Data   string
	TTL    time.Duration
	Intent string
}
