package handler

import (
	"sigrelay/internal/app/signaling"
	"sigrelay/internal/configs"
)

type AppDeps struct {
	Hub    *signaling.Hub
	Config *configs.AppConfig
}
