package handler

import (
	"context"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/configs"
)

// AppDeps carries everything the handlers need.
type AppDeps struct {
	Config  *configs.AppConfig
	Service *mentorship.Service

	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}
