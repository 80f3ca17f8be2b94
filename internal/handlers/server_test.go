package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/middleware"
	"github.com/blockwatch/blockwatch/internal/services"
	"github.com/blockwatch/blockwatch/internal/testhelpers"
)

type serverFixture struct {
	t      *testing.T
	store  *database.Store
	site   *database.Site
	feed   *AlertFeedHandler
	auth   *middleware.JWTAuthMiddleware
	router http.Handler
	token  string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	store := testhelpers.NewTestStore(t)
	site := testhelpers.SeedSite(t, store, "Z1")

	hash, err := middleware.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		SkipPaths:         []string{"/health", "/metrics", "/auth/login"},
		QueryTokenPaths:   []string{"/ws/alerts"},
	})
	cors := middleware.NewCORSMiddleware()
	feed := NewAlertFeedHandler(cors.IsAllowedOrigin)
	t.Cleanup(feed.Close)

	ingestion := services.NewIngestionService(services.NewRuleStore(store), services.NewBlockLocks(), feed)
	observations := services.NewObservationService(store, ingestion)

	sqlDB, err := store.DB().DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}

	limit := middleware.NewRateLimitMiddleware(6, 3, "/auth/login")
	t.Cleanup(limit.Stop)

	router := NewRouter(cors, limit, auth,
		NewHTTPHandler(sqlDB),
		NewAuthHandler(auth),
		NewObservationHandler(observations, store),
		feed,
	)

	token, err := auth.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return &serverFixture{t: t, store: store, site: site, feed: feed, auth: auth, router: router, token: token}
}

func (f *serverFixture) request(method, path string, body interface{}) *testhelpers.HTTPTestContext {
	ctx := testhelpers.NewHTTPTestContext(f.t, method, path, nil)
	if body != nil {
		ctx.WithJSONBody(body)
	}
	return ctx.WithBearerToken(f.token)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(f.router).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"database":"ok"`)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/health", nil).
		Execute(f.router).
		AssertStatus(http.StatusMethodNotAllowed)

	degraded := NewRouter(middleware.NewCORSMiddleware(), nil, f.auth, NewHTTPHandler(failingPinger{}))
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(degraded).
		AssertStatus(http.StatusServiceUnavailable).
		AssertBodyContains("connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	f.request(http.MethodPost, "/api/observations", map[string]interface{}{
		"barcode": "Z1A3017032011", "submittedBy": "ana", "rainfall": 50,
	}).Execute(f.router).AssertStatus(http.StatusCreated)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/metrics", nil).
		Execute(f.router).
		AssertStatus(http.StatusOK).
		AssertBodyContains("blockwatch_observations_recorded_total")
}

func TestAuth(t *testing.T) {
	f := newServerFixture(t)

	var login api.LoginResponse
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
		WithJSONBody(api.LoginRequest{Username: "admin", Password: "s3cret"}).
		Execute(f.router).
		AssertStatus(http.StatusOK).
		DecodeJSON(&login)
	if login.Token == "" || login.ExpiresIn != 24*60*60 {
		t.Errorf("login = %+v", login)
	}

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
		WithJSONBody(api.LoginRequest{Username: "admin", Password: "nope"}).
		Execute(f.router).
		AssertStatus(http.StatusUnauthorized)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
		WithJSONBody(map[string]string{"username": "admin"}).
		Execute(f.router).
		AssertStatus(http.StatusUnprocessableEntity)

	// the fixture allows a burst of three logins per client
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
		WithJSONBody(api.LoginRequest{Username: "admin", Password: "s3cret"}).
		Execute(f.router).
		AssertStatus(http.StatusTooManyRequests).
		AssertBodyContains("rate_limited")

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/auth/verify", nil).
		WithBearerToken(login.Token).
		Execute(f.router).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"username":"admin"`)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/auth/verify", nil).
		Execute(f.router).
		AssertStatus(http.StatusUnauthorized)
}

func TestCreateObservation(t *testing.T) {
	f := newServerFixture(t)

	var resp api.CreateObservationResponse
	f.request(http.MethodPost, "/api/observations", map[string]interface{}{
		"barcode":     "Z1A3017032011",
		"submittedBy": "ana",
		"temperature": "36",
		"moisture":    15,
		"rainfall":    40,
	}).Execute(f.router).AssertStatus(http.StatusCreated).DecodeJSON(&resp)

	if resp.ObservationID == "" || resp.Parsed.BlockID != "A" || resp.Parsed.SpeciesCode != "011" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.RulesStatus != "completed" {
		t.Errorf("rules_status = %q", resp.RulesStatus)
	}
	if len(resp.AlertsCreated) != 1 || resp.AlertsCreated[0].AlertType != "Fire Risk" {
		t.Fatalf("alerts_created = %+v", resp.AlertsCreated)
	}

	stored, err := f.store.GetObservation(context.Background(), resp.ObservationID)
	if err != nil {
		t.Fatalf("GetObservation: %v", err)
	}
	if stored.SiteID != f.site.ID || stored.RulesStatus != database.RulesStatusCompleted {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCreateObservation_Errors(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name   string
		body   interface{}
		token  bool
		status int
		substr string
	}{
		{name: "unauthenticated", body: map[string]interface{}{"barcode": "Z1A3017032011", "submittedBy": "ana"}, status: http.StatusUnauthorized},
		{name: "unknown site", token: true, body: map[string]interface{}{"barcode": "Q9A3017032011", "submittedBy": "ana"}, status: http.StatusNotFound, substr: "site_not_found"},
		{name: "no identity", token: true, body: map[string]interface{}{"barcode": "Z1A30", "submittedBy": "ana"}, status: http.StatusBadRequest, substr: "invalid_identity"},
		{name: "no submitter", token: true, body: map[string]interface{}{"barcode": "Z1A3017032011"}, status: http.StatusUnprocessableEntity, substr: "submittedBy"},
		{name: "unknown field", token: true, body: map[string]interface{}{"submittedBy": "ana", "fruitHeight": 3}, status: http.StatusBadRequest, substr: "unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/observations", nil).WithJSONBody(tt.body)
			if tt.token {
				ctx.WithBearerToken(f.token)
			}
			ctx.Execute(f.router).AssertStatus(tt.status)
			if tt.substr != "" {
				ctx.AssertBodyContains(tt.substr)
			}
		})
	}
}

func TestListAlerts(t *testing.T) {
	f := newServerFixture(t)

	post := func(barcode string, values map[string]interface{}) {
		body := map[string]interface{}{"barcode": barcode, "submittedBy": "ana"}
		for k, v := range values {
			body[k] = v
		}
		f.request(http.MethodPost, "/api/observations", body).Execute(f.router).AssertStatus(http.StatusCreated)
	}
	post("Z1A3017032011", map[string]interface{}{"soilMoisture": 5, "rainfall": 50})
	post("Z1B3017032011", map[string]interface{}{"visiblePests": "Yes", "rainfall": 50})
	post("Z1A3017032012", map[string]interface{}{"soilMoisture": 50, "rainfall": 50, "temperature": 31})

	var all api.PaginatedResponse
	f.request(http.MethodGet, "/api/alerts?site_id="+f.site.ID+"&per_page=1", nil).
		Execute(f.router).AssertStatus(http.StatusOK).DecodeJSON(&all)
	if all.Pagination.Total != 2 || all.Pagination.TotalPages != 2 {
		t.Errorf("pagination = %+v", all.Pagination)
	}

	f.request(http.MethodGet, "/api/alerts?block_id=A&status=resolved", nil).
		Execute(f.router).AssertStatus(http.StatusOK).
		AssertBodyContains(`"alert_type":"Drought Risk"`).
		AssertBodyContains(`"total":1`)

	f.request(http.MethodGet, "/api/alerts?block_id=B&status=active", nil).
		Execute(f.router).AssertStatus(http.StatusOK).
		AssertBodyContains(`"alert_type":"Pest Outbreak"`)

	f.request(http.MethodGet, "/api/alerts?status=open", nil).
		Execute(f.router).AssertStatus(http.StatusBadRequest)

	f.request(http.MethodGet, "/api/recommendations?status=pending", nil).
		Execute(f.router).AssertStatus(http.StatusOK).
		AssertBodyContains(`"title":"Improve Water Use Efficiency"`)

	f.request(http.MethodGet, "/api/recommendations?status=active", nil).
		Execute(f.router).AssertStatus(http.StatusBadRequest)
}

func TestAlertFeed(t *testing.T) {
	f := newServerFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("expected unauthenticated dial to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+f.token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello FeedMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != FeedMessageHello {
		t.Fatalf("hello = %+v, err = %v", hello, err)
	}

	f.request(http.MethodPost, "/api/observations", map[string]interface{}{
		"barcode": "Z1C3017032011", "submittedBy": "ana", "fireFlag": true, "rainfall": 50,
	}).Execute(f.router).AssertStatus(http.StatusCreated)

	var msg FeedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != FeedMessageAlertsCreated || msg.BlockID != "C" || msg.SiteID != f.site.ID {
		t.Errorf("msg = %+v", msg)
	}
	if len(msg.Alerts) != 1 || msg.Alerts[0].AlertType != "Fire Risk" {
		t.Errorf("alerts = %+v", msg.Alerts)
	}
}

func TestAlertFeed_SiteFilterAndSlowClients(t *testing.T) {
	feed := NewAlertFeedHandler(nil)
	other := &feedClient{send: make(chan []byte, 1), siteID: "other-site"}
	mine := &feedClient{send: make(chan []byte, 1), siteID: "s1"}
	all := &feedClient{send: make(chan []byte, 1)}
	feed.register(other)
	feed.register(mine)
	feed.register(all)

	obs := &database.Observation{ID: "o1", SiteID: "s1", BlockID: "A"}
	alerts := []database.Alert{{AlertType: "Fire Risk", Severity: "High"}}

	feed.AlertsCreated(context.Background(), obs, alerts)
	if len(other.send) != 0 || len(mine.send) != 1 || len(all.send) != 1 {
		t.Fatalf("queued: other=%d mine=%d all=%d", len(other.send), len(mine.send), len(all.send))
	}

	// buffers are full now, so both subscribers are dropped
	feed.AlertsCreated(context.Background(), obs, alerts)
	if feed.ClientCount() != 1 {
		t.Errorf("expected only the filtered-out client to remain, got %d", feed.ClientCount())
	}
}
