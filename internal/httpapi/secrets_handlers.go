package httpapi

import (
	"net/http"

	"leadgen-engine/internal/domain"
)

type SecretsHandler struct {
	Store SecretStore
}

type senderSecretReq struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	Secret   string `json:"secret"`
}

// Set stores an SMTP password or WhatsApp API key for one sender.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req senderSecretReq
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	ch, err := domain.ParseChannel(req.Channel)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_channel", err.Error())
		return
	}
	if err := h.Store.Set(ch, req.SenderID, req.Secret); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ch, err := domain.ParseChannel(r.URL.Query().Get("channel"))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_channel", err.Error())
		return
	}
	if err := h.Store.Delete(ch, r.URL.Query().Get("sender_id")); err != nil {
		WriteError(w, r, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
