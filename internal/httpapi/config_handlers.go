package httpapi

import (
	"net/http"
	"path/filepath"

	"leadgen-engine/internal/config"
)

// ConfigHandler exposes where the engine's config lives and what is wrong
// with it. Secrets are never returned.
type ConfigHandler struct {
	Cfg  config.Config
	Path string
}

func (h ConfigHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.Path)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.Cfg)
	if vr.Errors == nil {
		vr.Errors = []string{}
	}
	if vr.Warnings == nil {
		vr.Warnings = []string{}
	}
	WriteJSON(w, http.StatusOK, vr)
}
