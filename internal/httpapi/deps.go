package httpapi

import (
	"net/http"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/task"
)

// Tasks is the part of the orchestrator the API needs.
type Tasks interface {
	Submit(kind task.Kind, payload any) (string, error)
	Status(id string) (task.Task, error)
	List() []task.Task
}

// SecretStore writes sender credentials, normally to the OS keychain.
type SecretStore interface {
	Set(ch domain.Channel, senderID, secret string) error
	Delete(ch domain.Channel, senderID string) error
}

type Deps struct {
	Tasks   Tasks
	Hub     *events.Hub
	Secrets SecretStore
	Log     logger.Logger

	// Metrics serves /metrics; nil leaves the route out.
	Metrics http.Handler

	Config     config.Config
	ConfigPath string
}
