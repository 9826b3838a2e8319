package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds a single store operation
	DefaultTimeout = 10 * time.Second

	// LongTimeout bounds uploads and Drive transfers
	LongTimeout = 5 * time.Minute

	// ShortTimeout bounds cache and rate-limit lookups
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
