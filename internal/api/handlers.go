package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/datarade/internal/notify"
	"github.com/leapstack-labs/datarade/pkg/core"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc    Service
	events *notify.Notifier
	logger *slog.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.GetDataset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDatasetView(ds))
}

func (h *handlers) addDataset(w http.ResponseWriter, r *http.Request) {
	var body DatasetView
	if !h.decode(w, r, &body) {
		return
	}
	ds, err := h.svc.AddDataset(r.Context(), body.Spec())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewDatasetView(ds))
}

func (h *handlers) listContainers(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.ListContainers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]ContainerView, 0, len(specs))
	for _, spec := range specs {
		out = append(out, NewContainerView(spec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetDatasetContainer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewContainerView(c.Spec()))
}

func (h *handlers) registerContainer(w http.ResponseWriter, r *http.Request) {
	var body ContainerView
	if !h.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if body.ID != "" && body.ID != id {
		h.writeError(w, &core.ValidationError{Source: "request", Field: "id", Message: "does not match the URL"})
		return
	}
	body.ID = id
	c, err := h.svc.RegisterDatasetContainer(r.Context(), body.Spec())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewContainerView(c.Spec()))
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	cmd := core.RefreshDataset{
		DatasetName: chi.URLParam(r, "dataset"),
		ContainerID: chi.URLParam(r, "id"),
		Table:       r.URL.Query().Get("table"),
	}
	res, err := h.svc.RefreshDataset(r.Context(), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRefreshView(cmd.DatasetName, cmd.ContainerID, res))
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, &core.ValidationError{Source: "request", Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, NewRunView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, &core.ValidationError{Source: "request", Message: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// StatusFor maps an error to the HTTP status that reports it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrSchemaMapping):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
