package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/armory/internal/adapters/http/api"
	"github.com/okian/armory/internal/adapters/upstream"
	service "github.com/okian/armory/internal/app"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/internal/roster"
	"github.com/okian/armory/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// Mock implementations for testing
type mockDeps struct {
	err        error
	batchErr   error
	lastRegion string
	lastTeam   string
	lastBatch  []model.CharacterIdentifier
	dropped    []string
}

func (m *mockDeps) CharacterOverview(_ context.Context, realm, name, region string) (model.CharacterOverview, error) {
	m.lastRegion = region
	if m.err != nil {
		return model.CharacterOverview{}, m.err
	}
	return model.CharacterOverview{Name: name, RealmName: realm, Role: model.RoleTank}, nil
}

func (m *mockDeps) Overviews(_ context.Context, ids []model.CharacterIdentifier, region string) (service.BatchResult, error) {
	m.lastBatch, m.lastRegion = ids, region
	if m.batchErr != nil {
		return service.BatchResult{}, m.batchErr
	}
	res := service.BatchResult{Failures: []service.Failure{}}
	for _, id := range ids {
		res.Overviews = append(res.Overviews, model.CharacterOverview{Name: id.Name, RealmName: id.Realm})
	}
	return res, nil
}

func (m *mockDeps) TeamOverviews(ctx context.Context, team, region string) (service.BatchResult, error) {
	m.lastTeam = team
	if !strings.EqualFold(team, "main") {
		return service.BatchResult{}, fmt.Errorf("%w: %q", roster.ErrUnknownTeam, team)
	}
	return m.Overviews(ctx, []model.CharacterIdentifier{{Realm: "Kazzak", Name: "Foo"}}, region)
}

func (m *mockDeps) InvalidateCharacter(_ context.Context, realm, name string) error {
	if strings.TrimSpace(realm) == "" || strings.TrimSpace(name) == "" {
		return service.ErrInvalidCharacter
	}
	m.dropped = append(m.dropped, realm+"/"+name)
	return nil
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) map[string]interface{} {
	return map[string]interface{}{"started": true, "cacheEntries": 3}
}

func newTestServer(deps *mockDeps, opts ...api.Option) http.Handler {
	return api.NewServer(deps, mockStats{}, opts...).Handler()
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

func TestCharacterEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{}
		h := newTestServer(deps)

		Convey("When a character is requested", func() {
			rec := do(h, http.MethodGet, "/api/characters/Kazzak/Foo?region=us", "")

			Convey("Then the overview is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var ov model.CharacterOverview
				So(json.Unmarshal(rec.Body.Bytes(), &ov), ShouldBeNil)
				So(ov.Name, ShouldEqual, "Foo")
				So(ov.Role, ShouldEqual, model.RoleTank)
				So(deps.lastRegion, ShouldEqual, "us")
			})
		})

		errCases := []struct {
			err    error
			status int
			code   string
		}{
			{&upstream.StatusError{Provider: "blizzard", Status: http.StatusNotFound}, http.StatusNotFound, service.KindNotFound},
			{&upstream.TimeoutError{Provider: "blizzard", Timeout: time.Second, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, service.KindTimeout},
			{&upstream.StatusError{Provider: "blizzard", Status: http.StatusInternalServerError}, http.StatusBadGateway, service.KindUpstream},
			{&upstream.TokenError{Provider: "warcraftlogs", Status: http.StatusUnauthorized}, http.StatusBadGateway, service.KindToken},
			{&upstream.MalformedError{Provider: "warcraftlogs", Reason: "shape"}, http.StatusBadGateway, service.KindMalformed},
			{service.ErrInvalidCharacter, http.StatusBadRequest, service.KindInvalid},
		}
		for _, tc := range errCases {
			deps.err = tc.err
			rec := do(h, http.MethodGet, "/api/characters/Kazzak/Foo", "")
			So(rec.Code, ShouldEqual, tc.status)
			So(decodeError(rec)["code"], ShouldEqual, tc.code)
		}
	})
}

func TestTeamEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{}
		h := newTestServer(deps)

		Convey("A team path is not mistaken for a realm", func() {
			rec := do(h, http.MethodGet, "/api/characters/overview/MAIN", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.lastTeam, ShouldEqual, "MAIN")

			var res api.BatchResult
			So(json.Unmarshal(rec.Body.Bytes(), &res), ShouldBeNil)
			So(res.Overviews, ShouldHaveLength, 1)
		})

		Convey("A team can be named in the query", func() {
			rec := do(h, http.MethodGet, "/api/characters/overview?team=main&region=eu", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.lastTeam, ShouldEqual, "main")
			So(deps.lastRegion, ShouldEqual, "eu")
		})

		Convey("A missing team query is a bad request", func() {
			rec := do(h, http.MethodGet, "/api/characters/overview", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown team is not found", func() {
			rec := do(h, http.MethodGet, "/api/characters/overview/raid", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(rec)["code"], ShouldEqual, service.KindUnknownTeam)
		})
	})
}

func TestBatchEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{}
		h := newTestServer(deps, api.WithMaxBatch(2))

		Convey("When a valid batch is posted", func() {
			rec := do(h, http.MethodPost, "/api/characters/overview",
				`{"region":"eu","characters":[{"realm":"Kazzak","name":"Foo"},{"realm":"Draenor","name":"Bar"}]}`)

			Convey("Then every character is resolved", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastBatch, ShouldHaveLength, 2)
				var res api.BatchResult
				So(json.Unmarshal(rec.Body.Bytes(), &res), ShouldBeNil)
				So(res.Overviews[1].Name, ShouldEqual, "Bar")
			})
		})

		bad := []string{
			`not json`,
			`{"characters":[]}`,
			`{"characters":[{"realm":"Kazzak"}]}`,
			`{"characters":[{"realm":"a","name":"b"},{"realm":"a","name":"c"},{"realm":"a","name":"d"}]}`,
			`{"characters":[{"realm":"a","name":"b"}],"extra":true}`,
		}
		for _, body := range bad {
			rec := do(h, http.MethodPost, "/api/characters/overview", body)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		}

		Convey("When the service is stopped", func() {
			deps.batchErr = service.ErrNotStarted
			rec := do(h, http.MethodPost, "/api/characters/overview", `{"characters":[{"realm":"a","name":"b"}]}`)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newTestServer(&mockDeps{}, api.WithAllowedOrigins("http://localhost:3000"))

		Convey("healthz reports ok", func() {
			rec := do(h, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("metrics are exposed in Prometheus format", func() {
			do(h, http.MethodGet, "/healthz", "")
			rec := do(h, http.MethodGet, "/metrics", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "armory_overview_http_requests_total")
		})

		Convey("stats come from the provider", func() {
			rec := do(h, http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"cacheEntries":3`)
		})

		Convey("A request id is assigned or echoed", func() {
			rec := do(h, http.MethodGet, "/healthz", "")
			So(rec.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

			id := "3f1c2a9e-8a4b-4c1e-9d0f-2b6f7e5a1c3d"
			rec = do(h, http.MethodGet, "/healthz", "", api.RequestIDHeader, id)
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, id)

			rec = do(h, http.MethodGet, "/healthz", "", api.RequestIDHeader, "not-a-uuid")
			So(rec.Header().Get(api.RequestIDHeader), ShouldNotEqual, "not-a-uuid")
		})

		Convey("CORS headers are sent to allowed origins only", func() {
			rec := do(h, http.MethodGet, "/api/characters/Kazzak/Foo", "", "Origin", "http://localhost:3000")
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:3000")

			rec = do(h, http.MethodGet, "/api/characters/Kazzak/Foo", "", "Origin", "http://evil.example")
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})

		Convey("Preflight requests are answered", func() {
			rec := do(h, http.MethodOptions, "/api/characters/overview", "", "Origin", "http://localhost:3000")
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(rec.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
			So(rec.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "DELETE")
		})
	})
}

func TestInvalidateEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{}
		h := newTestServer(deps)

		Convey("When a character's cache entry is dropped", func() {
			rec := do(h, http.MethodDelete, "/api/characters/Argent%20Dawn/Foo/cache", "")

			Convey("Then the service is asked to invalidate it and nothing is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(rec.Body.Len(), ShouldEqual, 0)
				So(deps.dropped, ShouldResemble, []string{"Argent Dawn/Foo"})
			})
		})

		Convey("When the name is blank", func() {
			rec := do(h, http.MethodDelete, "/api/characters/Kazzak/%20/cache", "")

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(rec)["code"], ShouldEqual, service.KindInvalid)
			})
		})

		Convey("When GET is used on the cache path", func() {
			rec := do(h, http.MethodGet, "/api/characters/Kazzak/Foo/cache", "")
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(deps.dropped, ShouldBeEmpty)
		})
	})
}

func TestTeamEndpointClientGone(t *testing.T) {
	Convey("Given a client that disconnected before a team resolved", t, func() {
		h := newTestServer(&mockDeps{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodGet, "/api/characters/overview/ghosts", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Convey("Then no error body is written", func() {
			So(rec.Body.Len(), ShouldEqual, 0)
		})
	})
}
