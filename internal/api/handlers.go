// Package api exposes HTTP handlers for the site tracker.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"example.com/sitetracker/internal/assistant"
	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/ingest"
	"example.com/sitetracker/internal/tracker"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500

	// DefaultMaxImportBytes caps an uploaded sheet.
	DefaultMaxImportBytes = 16 << 20
)

// Assistant answers chat messages.
type Assistant interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Option configures optional collaborators of the Handler.
type Option func(*Handler)

// WithFeed enables POST /v1/feed/refresh against src.
func WithFeed(src tracker.Source) Option {
	return func(h *Handler) {
		h.feed = src
	}
}

// WithAssistant enables the chat relay.
func WithAssistant(a Assistant) Option {
	return func(h *Handler) {
		h.assistant = a
	}
}

// WithMaxImportBytes sets the largest accepted upload. Non-positive values keep the default.
func WithMaxImportBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImportBytes = n
		}
	}
}

// WithLogger overrides the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the tracker service.
type Handler struct {
	service   *tracker.Service
	feed      tracker.Source
	assistant Assistant
	logger    zerolog.Logger

	maxImportBytes int64
}

// NewHandler builds a Handler.
func NewHandler(service *tracker.Service, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		logger:         zerolog.New(os.Stderr).With().Timestamp().Str("component", "api").Logger(),
		maxImportBytes: DefaultMaxImportBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/activities/view", h.activityView)
	mux.HandleFunc("/v1/activities/stats", h.activityStats)
	mux.HandleFunc("/v1/activities/export", h.exportActivities)
	mux.HandleFunc("/v1/categories", h.categories)
	mux.HandleFunc("/v1/imports", h.imports)
	mux.HandleFunc("/v1/feed/refresh", h.refreshFeed)
	mux.HandleFunc("/v1/assistant/messages", h.assistantMessage)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.saveActivity(w, r, "")
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, id)
	case http.MethodPut:
		h.saveActivity(w, r, id)
	case http.MethodDelete:
		h.service.DeleteActivity(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getActivity(w http.ResponseWriter, id string) {
	activity, err := h.service.Activity(id)
	if err != nil {
		if errors.Is(err, tracker.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(activity))
}

func (h *Handler) saveActivity(w http.ResponseWriter, r *http.Request, pathID string) {
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if pathID != "" {
		if req.ID != "" && req.ID != pathID {
			writeError(w, http.StatusBadRequest, "validation_failed", "id in body does not match path")
			return
		}
		req.ID = pathID
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity := req.toActivity()
	created, err := h.service.SaveActivity(r.Context(), activity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toActivityView(activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	afterID, err := DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities := sortedActivities(h.service.Activities())
	start := 0
	if afterID != "" {
		// The order is total over distinct ids, so this also resumes
		// correctly when the cursor's activity was deleted meanwhile.
		start, _ = slices.BinarySearchFunc(activities, afterID, func(a domain.Activity, id string) int {
			return pageOrder(a.ID, id)
		})
		if start < len(activities) && activities[start].ID == afterID {
			start++
		}
	}
	end := min(start+limit, len(activities))
	page := activities[start:end]

	resp := ListActivitiesResponse{Items: make([]ActivityView, 0, len(page))}
	for _, a := range page {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	if end < len(activities) && len(page) > 0 {
		resp.NextCursor = EncodeCursor(page[len(page)-1].ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) activityView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	query := domain.Query{
		Search: r.URL.Query().Get("search"),
		Filter: domain.ParseStatusFilter(r.URL.Query().Get("status")),
	}
	groups := h.service.View(query)

	resp := ViewResponse{
		Search: query.Search,
		Status: string(query.Filter),
		Groups: make([]GroupView, 0, len(groups)),
	}
	for _, g := range groups {
		view := GroupView{Category: g.Category, Activities: make([]ActivityView, 0, len(g.Activities))}
		for _, a := range g.Activities {
			view.Activities = append(view.Activities, toActivityView(a))
		}
		resp.Count += len(g.Activities)
		resp.Groups = append(resp.Groups, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) activityStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	writeJSON(w, http.StatusOK, h.service.Stats())
}

func (h *Handler) exportActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="actividades.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := ingest.Encode(w, sortedActivities(h.service.Activities())); err != nil {
		h.logger.Error().Err(err).Msg("export failed")
	}
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: h.service.Categories()})
}

func (h *Handler) imports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.importFile(w, r)
	case http.MethodGet:
		h.recentImports(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("the uploaded file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(w, http.StatusUnprocessableEntity, "empty_file", "the uploaded file is empty")
		return
	}

	name := r.URL.Query().Get("name")
	result, err := h.service.ImportFile(r.Context(), name, string(body))
	if err != nil {
		if errors.Is(err, tracker.ErrNothingImported) {
			writeError(w, http.StatusUnprocessableEntity, "nothing_imported", "no valid activities found in file, check the column format")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) recentImports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, 100)
		}
	}
	results, err := h.service.RecentImports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if results == nil {
		results = []tracker.ImportResult{}
	}
	writeJSON(w, http.StatusOK, ImportsResponse{Items: results})
}

func (h *Handler) refreshFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "feed_disabled", "no activity feed configured")
		return
	}

	result, err := h.service.RefreshFeed(r.Context(), h.feed)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, tracker.ErrFeedUnavailable):
		writeError(w, http.StatusBadGateway, "feed_unavailable", err.Error())
	case errors.Is(err, tracker.ErrNothingImported):
		writeError(w, http.StatusUnprocessableEntity, "nothing_imported", "feed contained no valid activities")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (h *Handler) assistantMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant_disabled", "no assistant webhook configured")
		return
	}

	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	reply, err := h.assistant.Ask(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.logger.Warn().Err(err).Msg("assistant relay failed")
		writeError(w, http.StatusBadGateway, "assistant_unavailable", "could not reach the project assistant")
		return
	}
	writeJSON(w, http.StatusOK, AssistantResponse{Reply: reply})
}

// ActivityRequest is the payload for creating or replacing an activity.
type ActivityRequest struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Responsible string  `json:"responsible"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	Cost        float64 `json:"cost"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

// Validate ensures request correctness.
func (r ActivityRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("category is required")
	}
	if r.Status != "" && !domain.Status(r.Status).Valid() {
		return errors.New("status must be one of pending, in_progress, completed")
	}
	if r.Progress < 0 || r.Progress > 100 {
		return errors.New("progress must be between 0 and 100")
	}
	if r.Cost < 0 {
		return errors.New("cost must be >= 0")
	}
	return nil
}

func (r ActivityRequest) toActivity() domain.Activity {
	status := domain.Status(r.Status)
	if status == "" {
		status = domain.StatusPending
	}
	return domain.Activity{
		ID:          strings.TrimSpace(r.ID),
		Category:    strings.TrimSpace(r.Category),
		Name:        strings.TrimSpace(r.Name),
		Provider:    strings.TrimSpace(r.Provider),
		Responsible: strings.TrimSpace(r.Responsible),
		Status:      status,
		Progress:    r.Progress,
		Cost:        r.Cost,
		StartDate:   strings.TrimSpace(r.StartDate),
		EndDate:     strings.TrimSpace(r.EndDate),
	}
}

// ActivityView exposes an activity together with its display label.
type ActivityView struct {
	domain.Activity
	StatusLabel string `json:"status_label"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GroupView is one category section of the board.
type GroupView struct {
	Category   string         `json:"category"`
	Activities []ActivityView `json:"activities"`
}

// ViewResponse describes the filtered, grouped board.
type ViewResponse struct {
	Search string      `json:"search"`
	Status string      `json:"status"`
	Count  int         `json:"count"`
	Groups []GroupView `json:"groups"`
}

// CategoriesResponse lists the categories in use.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// ImportsResponse lists recent ingestions.
type ImportsResponse struct {
	Items []tracker.ImportResult `json:"items"`
}

// AssistantRequest carries one chat message.
type AssistantRequest struct {
	Message string `json:"message"`
}

// AssistantResponse carries the assistant's reply.
type AssistantResponse struct {
	Reply string `json:"reply"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{Activity: a, StatusLabel: a.Status.Label()}
}

func sortedActivities(activities []domain.Activity) []domain.Activity {
	slices.SortFunc(activities, func(a, b domain.Activity) int {
		return pageOrder(a.ID, b.ID)
	})
	return activities
}

// pageOrder is the hierarchical id order with ties such as "2" and "2.0"
// broken by the raw id, so paging never skips an activity.
func pageOrder(a, b string) int {
	if c := domain.CompareIDs(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
