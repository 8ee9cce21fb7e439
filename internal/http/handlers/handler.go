package handlers

import (
	"genfity-staff-queue/internal/config"
	"genfity-staff-queue/internal/console"

	"go.uber.org/zap"
)

type Handler struct {
	Console *console.Console
	Logger  *zap.Logger
	Config  config.Config
}
