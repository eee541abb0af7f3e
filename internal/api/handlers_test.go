package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"example.com/sitetracker/internal/assistant"
	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/tracker"
)

var fixture = []domain.Activity{
	{ID: "10.1", Category: "Carteleria", Name: "Letrero frontal", Provider: "Signs SA", Responsible: "Ana", Status: domain.StatusInProgress, Progress: 50, Cost: 1000},
	{ID: "2.1", Category: "Obra Civil", Name: "Demolicion", Provider: "Constructora", Responsible: "Luis", Status: domain.StatusCompleted, Progress: 100, Cost: 500},
	{ID: "2.2", Category: "Obra Civil", Name: "Contrapiso", Provider: "Constructora", Responsible: "Luis", Status: domain.StatusPending, Progress: 0, Cost: 250},
	{ID: "9.1", Category: "Comunicaciones", Name: "Cableado", Provider: "Redes", Responsible: "Ana", Status: domain.StatusPending, Progress: 10, Cost: 0},
}

func newTestMux(t *testing.T, opts ...Option) (*http.ServeMux, *tracker.Service) {
	t.Helper()
	set := domain.NewWorkingSet(fixture, 0)
	clock := func() time.Time { return time.Date(2025, time.December, 5, 12, 0, 0, 0, time.UTC) }
	service := tracker.NewService(set,
		tracker.WithLogger(zerolog.Nop()),
		tracker.WithClock(clock),
		tracker.WithIDGenerator(func() string { return "abc123" }),
	)
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	mux := http.NewServeMux()
	NewHandler(service, opts...).RegisterRoutes(mux)
	return mux, service
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
	return out
}

func TestActivityViewGroupsAndFilters(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/activities/view", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[ViewResponse](t, rr)
	if resp.Count != 4 {
		t.Fatalf("expected 4 activities got %d", resp.Count)
	}
	if len(resp.Groups) != 3 {
		t.Fatalf("expected 3 groups got %d", len(resp.Groups))
	}
	if resp.Groups[0].Category != "Obra Civil" || resp.Groups[0].Activities[0].ID != "2.1" {
		t.Fatalf("unexpected first group %+v", resp.Groups[0])
	}
	if resp.Groups[2].Category != "Carteleria" {
		t.Fatalf("expected Carteleria last got %s", resp.Groups[2].Category)
	}

	rr = serve(mux, http.MethodGet, "/v1/activities/view?search=ANA&status=por%20hacer", "")
	resp = decode[ViewResponse](t, rr)
	if resp.Status != string(domain.FilterPending) {
		t.Fatalf("expected pending filter got %s", resp.Status)
	}
	if resp.Count != 1 || resp.Groups[0].Activities[0].ID != "9.1" {
		t.Fatalf("unexpected filtered view %+v", resp)
	}
	if resp.Groups[0].Activities[0].StatusLabel != "Por hacer" {
		t.Fatalf("unexpected label %s", resp.Groups[0].Activities[0].StatusLabel)
	}
}

func TestListActivitiesPaginates(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/activities?limit=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	first := decode[ListActivitiesResponse](t, rr)
	if len(first.Items) != 3 || first.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", first)
	}
	if first.Items[0].ID != "2.1" || first.Items[2].ID != "9.1" {
		t.Fatalf("unexpected ordering %s..%s", first.Items[0].ID, first.Items[2].ID)
	}

	rr = serve(mux, http.MethodGet, "/v1/activities?limit=3&cursor="+first.NextCursor, "")
	second := decode[ListActivitiesResponse](t, rr)
	if len(second.Items) != 1 || second.Items[0].ID != "10.1" {
		t.Fatalf("unexpected second page %+v", second)
	}
	if second.NextCursor != "" {
		t.Fatalf("expected no further cursor got %s", second.NextCursor)
	}

	rr = serve(mux, http.MethodGet, "/v1/activities?cursor=bm9wZQ", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor got %d", rr.Code)
	}
}

func TestListActivitiesPagesThroughTiedIDs(t *testing.T) {
	set := domain.NewWorkingSet([]domain.Activity{
		{ID: "3", Category: "Obra", Name: "Cerco"},
		{ID: "2.0", Category: "Obra", Name: "Pintura"},
		{ID: "2", Category: "Obra", Name: "Demolicion"},
	}, 0)
	mux := http.NewServeMux()
	NewHandler(tracker.NewService(set, tracker.WithLogger(zerolog.Nop())), WithLogger(zerolog.Nop())).RegisterRoutes(mux)

	var seen []string
	cursor := ""
	for i := 0; i < 5; i++ {
		page := decode[ListActivitiesResponse](t, serve(mux, http.MethodGet, "/v1/activities?limit=1&cursor="+cursor, ""))
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if strings.Join(seen, " ") != "2 2.0 3" {
		t.Fatalf("expected every activity once in order, got %v", seen)
	}

	// Resuming after a deleted activity continues with its successor.
	set.Delete("2")
	page := decode[ListActivitiesResponse](t, serve(mux, http.MethodGet, "/v1/activities?cursor="+EncodeCursor("2"), ""))
	if len(page.Items) != 2 || page.Items[0].ID != "2.0" {
		t.Fatalf("unexpected page after deleted cursor %+v", page.Items)
	}
}

func TestSaveActivityCreatesThenUpdates(t *testing.T) {
	mux, service := newTestMux(t)

	body := `{"id":"3.1","category":"Electricidad","name":"Tablero","status":"in_progress","progress":40,"cost":120.5}`
	rr := serve(mux, http.MethodPost, "/v1/activities", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(mux, http.MethodPut, "/v1/activities/3.1", `{"category":"Electricidad","name":"Tablero general","status":"completed","progress":100}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	saved, err := service.Activity("3.1")
	if err != nil {
		t.Fatalf("expected saved activity: %v", err)
	}
	if saved.Name != "Tablero general" || saved.Status != domain.StatusCompleted {
		t.Fatalf("update not applied: %+v", saved)
	}
	if len(service.Activities()) != 5 {
		t.Fatalf("expected 5 activities got %d", len(service.Activities()))
	}
}

func TestSaveActivityValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	cases := map[string]string{
		"missing id":     `{"category":"A","name":"B"}`,
		"bad status":     `{"id":"1","category":"A","name":"B","status":"done"}`,
		"progress range": `{"id":"1","category":"A","name":"B","progress":101}`,
		"negative cost":  `{"id":"1","category":"A","name":"B","cost":-1}`,
		"malformed":      `{"id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := serve(mux, http.MethodPost, "/v1/activities", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rr.Code)
			}
		})
	}

	rr := serve(mux, http.MethodPut, "/v1/activities/1.1", `{"id":"2.1","category":"A","name":"B"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for id mismatch got %d", rr.Code)
	}
}

func TestGetAndDeleteActivity(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/activities/2.2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if got := decode[ActivityView](t, rr); got.Name != "Contrapiso" {
		t.Fatalf("unexpected activity %+v", got)
	}

	rr = serve(mux, http.MethodDelete, "/v1/activities/2.2", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	rr = serve(mux, http.MethodGet, "/v1/activities/2.2", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if errBody := decode[map[string]string](t, rr); errBody["type"] != "not_found" {
		t.Fatalf("unexpected error body %v", errBody)
	}

	rr = serve(mux, http.MethodDelete, "/v1/activities/2.2", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown id got %d", rr.Code)
	}
}

func TestActivityStats(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/activities/stats", "")
	stats := decode[domain.Stats](t, rr)
	want := domain.Stats{Total: 4, Pending: 2, InProgress: 1, Completed: 1, OverallProgress: 40, TotalCost: 1750}
	if stats != want {
		t.Fatalf("expected %+v got %+v", want, stats)
	}
}

func TestCategories(t *testing.T) {
	mux, _ := newTestMux(t)

	resp := decode[CategoriesResponse](t, serve(mux, http.MethodGet, "/v1/categories", ""))
	if strings.Join(resp.Categories, "|") != "Carteleria|Comunicaciones|Obra Civil" {
		t.Fatalf("unexpected categories %v", resp.Categories)
	}
}

func TestExportActivities(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/activities/export", "")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header plus 4 rows got %d", len(records))
	}
	if records[1][0] != "2.1" || records[4][0] != "10.1" {
		t.Fatalf("unexpected export order %v", records)
	}
	if records[4][5] != "En proceso" {
		t.Fatalf("expected status label got %s", records[4][5])
	}
}

func TestImportFile(t *testing.T) {
	mux, service := newTestMux(t)

	body := "ID,Categoria,Nombre\n,Electricidad,Tablero\n11.1,Pintura,Fachada\nsolo\n"
	rr := serve(mux, http.MethodPost, "/v1/imports?name=sucursal.csv", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	result := decode[tracker.ImportResult](t, rr)
	if result.Accepted != 2 || result.Rejected != 1 || result.Total != 6 {
		t.Fatalf("unexpected import result %+v", result)
	}
	synthesized, err := service.Activity("abc123")
	if err != nil {
		t.Fatalf("expected synthesized id: %v", err)
	}
	if synthesized.StartDate != "2025-12-05" {
		t.Fatalf("expected start date default got %q", synthesized.StartDate)
	}

	rr = serve(mux, http.MethodPost, "/v1/imports", "   \n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty file got %d", rr.Code)
	}

	rr = serve(mux, http.MethodPost, "/v1/imports", "id,categoria\nsolo\n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rr.Code)
	}
	if errBody := decode[map[string]string](t, rr); errBody["type"] != "nothing_imported" {
		t.Fatalf("unexpected error body %v", errBody)
	}
}

func TestImportFileRejectsOversizeUpload(t *testing.T) {
	mux, service := newTestMux(t, WithMaxImportBytes(32))

	rr := serve(mux, http.MethodPost, "/v1/imports", "11.1,Pintura,Fachada\n11.2,Pintura,Rejas\n")
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]string](t, rr)["type"]; got != "file_too_large" {
		t.Fatalf("unexpected error type %q", got)
	}
	if _, err := service.Activity("11.1"); !errors.Is(err, tracker.ErrActivityNotFound) {
		t.Fatalf("a truncated upload must not be imported, got %v", err)
	}

	rr = serve(mux, http.MethodPost, "/v1/imports", "11.1,Pintura,Fachada\n")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 within the limit got %d", rr.Code)
	}
}

func TestRecentImportsWithoutAuditor(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := serve(mux, http.MethodGet, "/v1/imports", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if resp := decode[ImportsResponse](t, rr); resp.Items == nil || len(resp.Items) != 0 {
		t.Fatalf("expected empty list got %+v", resp.Items)
	}
}

func TestRefreshFeed(t *testing.T) {
	rr := serve(mustMux(t), http.MethodPost, "/v1/feed/refresh", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without feed got %d", rr.Code)
	}

	failing := &stubSource{err: errors.New("dial tcp: timeout")}
	mux, service := newTestMux(t, WithFeed(failing))
	rr = serve(mux, http.MethodPost, "/v1/feed/refresh", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rr.Code)
	}
	if len(service.Activities()) != 4 {
		t.Fatalf("working set must be kept on failure")
	}

	empty := &stubSource{text: "id,categoria,nombre\n"}
	mux, _ = newTestMux(t, WithFeed(empty))
	rr = serve(mux, http.MethodPost, "/v1/feed/refresh", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rr.Code)
	}

	ok := &stubSource{text: "id,categoria,nombre\n1.1,Obra,Cerco\n"}
	mux, service = newTestMux(t, WithFeed(ok))
	rr = serve(mux, http.MethodPost, "/v1/feed/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := service.Activities(); len(got) != 1 || got[0].ID != "1.1" {
		t.Fatalf("expected feed to replace working set got %+v", got)
	}
}

func TestAssistantMessage(t *testing.T) {
	rr := serve(mustMux(t), http.MethodPost, "/v1/assistant/messages", `{"message":"hola"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without assistant got %d", rr.Code)
	}

	bot := &stubAssistant{reply: "Hay 2 tareas pendientes"}
	mux, _ := newTestMux(t, WithAssistant(bot))
	rr = serve(mux, http.MethodPost, "/v1/assistant/messages", `{"message":"que falta?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if resp := decode[AssistantResponse](t, rr); resp.Reply != bot.reply {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}
	if bot.got != "que falta?" {
		t.Fatalf("assistant received %q", bot.got)
	}

	mux, _ = newTestMux(t, WithAssistant(&stubAssistant{err: assistant.ErrEmptyMessage}))
	if rr = serve(mux, http.MethodPost, "/v1/assistant/messages", `{"message":""}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	mux, _ = newTestMux(t, WithAssistant(&stubAssistant{err: errors.New("connection refused")}))
	if rr = serve(mux, http.MethodPost, "/v1/assistant/messages", `{"message":"hola"}`); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := mustMux(t)
	for _, target := range []string{"/v1/activities/stats", "/v1/categories", "/v1/feed/refresh"} {
		method := http.MethodDelete
		if rr := serve(mux, method, target, ""); rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405 got %d", method, target, rr.Code)
		}
	}
}

func mustMux(t *testing.T) *http.ServeMux {
	mux, _ := newTestMux(t)
	return mux
}

type stubSource struct {
	text string
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context) (string, error) {
	return s.text, s.err
}

type stubAssistant struct {
	reply string
	err   error
	got   string
}

func (a *stubAssistant) Ask(_ context.Context, message string) (string, error) {
	a.got = message
	return a.reply, a.err
}
