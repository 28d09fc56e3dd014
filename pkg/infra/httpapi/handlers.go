// Package httpapi is the thin HTTP ingress over the crossref inbound ports.
// URL design and richer transport concerns live upstream; these handlers
// decode, delegate and map domain error codes to status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
)

// Handler bundles the inbound ports behind a mux router.
type Handler struct {
	rebuilder crossref_in.Rebuilder
	cascader  crossref_in.CascadeRebuilder
	fetcher   crossref_in.Fetcher
	timeout   time.Duration
	log       *zap.Logger
}

// NewRouter builds the service router.
func NewRouter(rebuilder crossref_in.Rebuilder, cascader crossref_in.CascadeRebuilder, fetcher crossref_in.Fetcher, timeout time.Duration, log *zap.Logger, gatherer prometheus.Gatherer) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{rebuilder: rebuilder, cascader: cascader, fetcher: fetcher, timeout: timeout, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/rebuild", h.rebuild).Methods(http.MethodPost)
	r.HandleFunc("/cascade", h.cascade).Methods(http.MethodPost)
	r.HandleFunc("/fetch", h.fetch).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

type rebuildRequest struct {
	ResourceType gameday.ResourceType `json:"resourceType"`
	ExternalKey  string               `json:"externalKey"`
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, reqLog := h.begin(r, "rebuild")
	defer cancel()

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, reqLog, gameday.NewError(gameday.CodeBadRequest, "undecodable request body"))
		return
	}
	rec, err := h.rebuilder.Rebuild(ctx, req.ResourceType, req.ExternalKey)
	if err != nil {
		h.writeError(w, reqLog, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"resourceType": rec.ResourceType,
		"externalKey":  rec.ExternalKey,
		"gamedayId":    rec.GamedayID,
		"lastUpdated":  rec.LastUpdated,
	})
}

func (h *Handler) cascade(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, reqLog := h.begin(r, "cascade")
	defer cancel()

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, reqLog, gameday.NewError(gameday.CodeBadRequest, "undecodable request body"))
		return
	}
	report, err := h.cascader.RebuildTransitively(ctx, req.ResourceType, req.ExternalKey)
	if err != nil {
		h.writeError(w, reqLog, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, reqLog := h.begin(r, "fetch")
	defer cancel()

	var req crossref_entities.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, reqLog, gameday.NewError(gameday.CodeBadRequest, "undecodable request body"))
		return
	}
	res, err := h.fetcher.Fetch(ctx, &req)
	if err != nil {
		h.writeError(w, reqLog, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// begin derives the per-request deadline context and a correlation-scoped
// logger.
func (h *Handler) begin(r *http.Request, op string) (context.Context, context.CancelFunc, *zap.Logger) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	reqLog := h.log.With(
		zap.String("op", op),
		zap.String("requestId", uuid.NewString()),
	)
	return ctx, cancel, reqLog
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("response encoding failed", zap.Error(err))
	}
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, reqLog *zap.Logger, err error) {
	var domainErr *gameday.Error
	if !errors.As(err, &domainErr) {
		if errors.Is(err, gameday.ErrSkipRebuild) {
			h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{
				Code:    "Skipped",
				Message: err.Error(),
			})
			return
		}
		reqLog.Error("unclassified failure", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    string(gameday.CodeStorageError),
			Message: "internal failure",
		})
		return
	}

	status := statusFor(domainErr.Code)
	if status >= http.StatusInternalServerError {
		reqLog.Error("request failed", zap.Error(err))
	} else {
		reqLog.Info("request rejected", zap.Error(err))
	}
	h.writeJSON(w, status, errorBody{
		Code:    string(domainErr.Code),
		Message: domainErr.Message,
		Fields:  domainErr.Fields,
	})
}

func statusFor(code gameday.ErrorCode) int {
	switch code {
	case gameday.CodeBadRequest, gameday.CodeBadEdgeLabel, gameday.CodeBadCompoundKey,
		gameday.CodeUnreachableByGraph, gameday.CodeUnreachableByRoutes,
		gameday.CodeUnreachableAutoRoute, gameday.CodeCycleDetected:
		return http.StatusBadRequest
	case gameday.CodeRootMissing, gameday.CodeNotFound:
		return http.StatusNotFound
	case gameday.CodeDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
