package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"leadgen-engine/internal/campaign"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/task"
)

const maxBodyBytes = 1 << 20

// stringList accepts either "x" or ["x", "y"].
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("must be a string or an array of strings")
	}
	*s = many
	return nil
}

type startScrapingRequest struct {
	Country    stringList `json:"country"`
	Job        stringList `json:"job"`
	MaxResults int        `json:"max_results"`
	ProxyType  string     `json:"proxy_type"`
}

type startResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type TaskHandler struct {
	Tasks Tasks
}

func (h TaskHandler) StartScraping(w http.ResponseWriter, r *http.Request) {
	var req startScrapingRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessageError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(nonBlank(req.Country)) == 0 || len(nonBlank(req.Job)) == 0 {
		writeMessageError(w, http.StatusBadRequest, "'country' and 'job' fields are required.")
		return
	}

	h.submit(w, task.KindScraping, scrape.Request{
		Jobs:       req.Job,
		Countries:  req.Country,
		MaxResults: req.MaxResults,
		ProxyType:  strings.TrimSpace(req.ProxyType),
	}, "Scraping task has been successfully started.")
}

func (h TaskHandler) StartEmailCampaign(w http.ResponseWriter, r *http.Request) {
	h.submit(w, task.KindEmailCampaign, campaign.Request{}, "Email campaign has been successfully started.")
}

func (h TaskHandler) StartWhatsAppCampaign(w http.ResponseWriter, r *http.Request) {
	h.submit(w, task.KindWhatsAppCampaign, campaign.Request{}, "WhatsApp campaign has been successfully started.")
}

func (h TaskHandler) submit(w http.ResponseWriter, kind task.Kind, payload any, msg string) {
	id, err := h.Tasks.Submit(kind, payload)
	switch {
	case errors.Is(err, task.ErrUnknownKind):
		writeMessageError(w, http.StatusServiceUnavailable, string(kind)+" is not configured on this engine.")
		return
	case err != nil:
		writeMessageError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, startResponse{Message: msg, TaskID: id})
}

func (h TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Status(chi.URLParam(r, "task_id"))
	if errors.Is(err, task.ErrNotFound) {
		writeMessageError(w, http.StatusNotFound, "Task ID not found.")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// List returns every known task, newest first.
func (h TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.Tasks.List()
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	WriteJSON(w, http.StatusOK, all)
}

// decodeBody accepts an empty body as {}.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func nonBlank(xs []string) []string {
	var out []string
	for _, x := range xs {
		if strings.TrimSpace(x) != "" {
			out = append(out, x)
		}
	}
	return out
}
