package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (model.ProfileDocuments, bool, error) {
	return model.ProfileDocuments{}, false, errors.New("down")
}

func (failingStore) Set(context.Context, string, model.ProfileDocuments, time.Duration) error {
	return errors.New("down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("down") }
func (failingStore) Len(context.Context) (int, error)     { return 0, errors.New("down") }

func TestKey(t *testing.T) {
	Convey("Given keys built from display values", t, func() {
		So(NewKey(" Argent Dawn", "THRALL").String(), ShouldEqual, "argent-dawn_thrall")
		So(NewKey("argent dawn", "thrall"), ShouldResemble, NewKey("Argent  Dawn", "Thrall"))
	})
}

func TestGetOrFetch(t *testing.T) {
	Convey("Given a response cache with a ten minute TTL", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		c := New(WithStore(NewMemoryStore(WithClock(clock))), WithTTL(10*time.Minute))
		key := NewKey("Kazzak", "Foo")

		var calls atomic.Int32
		fetch := func(context.Context) (model.ProfileDocuments, error) {
			calls.Add(1)
			return docs("foo"), nil
		}

		Convey("When called twice inside the TTL", func() {
			first, err1 := c.GetOrFetch(ctx, key, fetch)
			clock.Advance(9 * time.Minute)
			second, err2 := c.GetOrFetch(ctx, key, fetch)

			Convey("Then fetch runs once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 1)
				So(second, ShouldResemble, first)
				So(c.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When called again after the TTL", func() {
			_, _ = c.GetOrFetch(ctx, key, fetch)
			clock.Advance(10 * time.Minute)
			_, err := c.GetOrFetch(ctx, key, fetch)

			Convey("Then fetch runs a second time", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When fetch fails", func() {
			boom := errors.New("boom")
			_, err := c.GetOrFetch(ctx, key, func(context.Context) (model.ProfileDocuments, error) {
				calls.Add(1)
				return model.ProfileDocuments{}, boom
			})

			Convey("Then the error propagates and is not cached", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				_, err := c.GetOrFetch(ctx, key, fetch)
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When a key is invalidated", func() {
			_, _ = c.GetOrFetch(ctx, key, fetch)
			So(c.Invalidate(ctx, key), ShouldBeNil)
			_, _ = c.GetOrFetch(ctx, key, fetch)

			Convey("Then the next call fetches again", func() {
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When many callers miss at once", func() {
			release := make(chan struct{})
			slow := func(context.Context) (model.ProfileDocuments, error) {
				calls.Add(1)
				<-release
				return docs("foo"), nil
			}
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.GetOrFetch(ctx, key, slow)
				}()
			}
			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			Convey("Then one fetch serves them all", func() {
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the key or fetch is invalid", func() {
			_, err := c.GetOrFetch(ctx, Key{Realm: "kazzak"}, fetch)
			So(errors.Is(err, ErrInvalidKey), ShouldBeTrue)
			_, err = c.GetOrFetch(ctx, key, nil)
			So(errors.Is(err, ErrNilFetch), ShouldBeTrue)
		})
	})
}

func TestGetOrFetchDegradedStore(t *testing.T) {
	Convey("Given a cache whose store always fails", t, func() {
		c := New(WithStore(failingStore{}))
		var calls int
		v, err := c.GetOrFetch(context.Background(), NewKey("Kazzak", "Foo"), func(context.Context) (model.ProfileDocuments, error) {
			calls++
			return docs("foo"), nil
		})

		Convey("Then the fetch result is still returned", func() {
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 1)
			So(string(v.Profile), ShouldEqual, `{"name":"foo"}`)
			So(c.Len(context.Background()), ShouldEqual, 0)
		})
	})
}

func TestStartSweeper(t *testing.T) {
	Convey("Given a cache with expired entries and a running sweeper", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		clock := clockwork.NewFakeClock()
		c := New(WithStore(NewMemoryStore(WithClock(clock))), WithTTL(time.Second), WithSweepClock(clock))
		_, _ = c.GetOrFetch(ctx, NewKey("Kazzak", "Foo"), func(context.Context) (model.ProfileDocuments, error) {
			return docs("foo"), nil
		})
		c.StartSweeper(ctx, time.Minute)

		for i := 0; i < 200 && c.Len(ctx) > 0; i++ {
			clock.Advance(time.Minute)
			time.Sleep(5 * time.Millisecond)
		}

		Convey("Then expired entries disappear without reads", func() {
			So(c.Len(ctx), ShouldEqual, 0)
		})
	})
}
