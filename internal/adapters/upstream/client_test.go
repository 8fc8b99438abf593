package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeTokens struct {
	mu          sync.Mutex
	tokens      []string
	issued      int
	invalidated []string
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tokens[f.issued]
	if f.issued < len(f.tokens)-1 {
		f.issued++
	}
	return t, nil
}

func (f *fakeTokens) Invalidate(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
}

func get(url string) upstream.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestClientDo(t *testing.T) {
	Convey("Given an upstream client", t, func() {
		Convey("When the server answers 200", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			body, err := upstream.NewClient("test").Do(context.Background(), get(srv.URL))

			Convey("Then the body is returned", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"ok":true}`)
			})
		})

		Convey("When the server answers 404 with a long body", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
			}))
			defer srv.Close()

			_, err := upstream.NewClient("test").Do(context.Background(), get(srv.URL))

			Convey("Then a truncated StatusError is returned", func() {
				var se *upstream.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, http.StatusNotFound)
				So(se.IsNotFound(), ShouldBeTrue)
				So(len(se.Body), ShouldBeLessThan, 600)
				So(errors.Is(err, upstream.ErrUpstream), ShouldBeTrue)
				So(upstream.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When the server is slower than the timeout", func() {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)

			c := upstream.NewClient("slow", upstream.WithTimeout(50*time.Millisecond))
			_, err := c.Do(context.Background(), get(srv.URL))

			Convey("Then a TimeoutError is returned", func() {
				var te *upstream.TimeoutError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.Timeout, ShouldEqual, 50*time.Millisecond)
				So(errors.Is(err, upstream.ErrUpstreamTimeout), ShouldBeTrue)
				So(errors.Is(err, upstream.ErrUpstream), ShouldBeFalse)
			})
		})

		Convey("When the server is unreachable", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			_, err := upstream.NewClient("gone").Do(context.Background(), get(url))

			Convey("Then a transport StatusError is returned", func() {
				var se *upstream.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, 0)
				So(se.Err, ShouldNotBeNil)
			})
		})
	})
}

func TestClientDoAuthorized(t *testing.T) {
	Convey("Given a server that rejects the first token", t, func() {
		var seen []string
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen = append(seen, r.Header.Get("Authorization"))
			mu.Unlock()
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		build := func(ctx context.Context, token string) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			if err != nil {
				return nil, err
			}
			upstream.SetBearer(req, token)
			return req, nil
		}

		Convey("When the second token is accepted", func() {
			tokens := &fakeTokens{tokens: []string{"stale", "fresh"}}
			body, err := upstream.NewClient("test").DoAuthorized(context.Background(), tokens, build)

			Convey("Then the stale token is invalidated and the call succeeds", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, "{}")
				So(tokens.invalidated, ShouldResemble, []string{"stale"})
				So(seen, ShouldResemble, []string{"Bearer stale", "Bearer fresh"})
			})
		})

		Convey("When every token is rejected", func() {
			tokens := &fakeTokens{tokens: []string{"stale", "also-stale"}}
			_, err := upstream.NewClient("test").DoAuthorized(context.Background(), tokens, build)

			Convey("Then it retries exactly once", func() {
				var se *upstream.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, http.StatusUnauthorized)
				So(len(seen), ShouldEqual, 2)
				So(len(tokens.invalidated), ShouldEqual, 1)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given typed upstream errors", t, func() {
		tokenErr := &upstream.TokenError{Provider: "blizzard", Status: 401, Body: "denied"}
		malformed := &upstream.MalformedError{Provider: "warcraftlogs", Reason: "zoneRankings"}

		Convey("Then they match their sentinel kinds", func() {
			So(errors.Is(tokenErr, upstream.ErrTokenAcquisition), ShouldBeTrue)
			So(tokenErr.Error(), ShouldContainSubstring, "status 401")
			So(errors.Is(malformed, upstream.ErrMalformedResponse), ShouldBeTrue)
			So(errors.Is(malformed, upstream.ErrUpstream), ShouldBeFalse)
		})

		Convey("And truncation keeps short bodies intact", func() {
			So(upstream.Truncate([]byte("short")), ShouldEqual, "short")
			So(upstream.Truncate([]byte(strings.Repeat("a", 513))), ShouldEndWith, "...(truncated)")
		})
	})
}
