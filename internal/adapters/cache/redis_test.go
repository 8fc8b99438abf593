package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	rediscache "github.com/okian/armory/internal/adapters/cache"
	domaincache "github.com/okian/armory/internal/domain/cache"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var _ domaincache.Store = (*rediscache.RedisStore)(nil)

func TestRedisStore(t *testing.T) {
	Convey("Given a Redis store on miniredis", t, func() {
		mr, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer mr.Close()

		ctx := context.Background()
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := rediscache.NewRedisStore(client, rediscache.WithPrefix("test:"))
		defer s.Close()

		v := model.ProfileDocuments{
			Profile: json.RawMessage(`{"name":"Foo"}`),
			Mythic:  json.RawMessage(`{"current_mythic_rating":{"rating":2100}}`),
		}

		Convey("When a value is stored", func() {
			So(s.Set(ctx, "kazzak_foo", v, time.Minute), ShouldBeNil)

			Convey("Then it round-trips under the prefixed key", func() {
				got, ok, err := s.Get(ctx, "kazzak_foo")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(string(got.Profile), ShouldEqual, `{"name":"Foo"}`)
				So(string(got.Mythic), ShouldEqual, `{"current_mythic_rating":{"rating":2100}}`)
				So(mr.Exists("test:kazzak_foo"), ShouldBeTrue)
				So(mr.TTL("test:kazzak_foo"), ShouldEqual, time.Minute)
			})

			Convey("Then it expires with the key TTL", func() {
				mr.FastForward(time.Minute + time.Second)
				_, ok, err := s.Get(ctx, "kazzak_foo")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("Then Len and Delete see it", func() {
				So(s.Set(ctx, "kazzak_bar", v, time.Minute), ShouldBeNil)
				So(mr.Set("other:key", "x"), ShouldBeNil)
				n, err := s.Len(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				So(s.Delete(ctx, "kazzak_foo"), ShouldBeNil)
				n, _ = s.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the key is missing", func() {
			_, ok, err := s.Get(ctx, "nobody")

			Convey("Then it is a plain miss", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the stored value is garbage", func() {
			So(mr.Set("test:bad", "not json"), ShouldBeNil)
			_, ok, err := s.Get(ctx, "bad")

			Convey("Then a decode error is returned", func() {
				So(err, ShouldNotBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When used behind a ResponseCache", func() {
			rc := domaincache.New(domaincache.WithStore(s), domaincache.WithTTL(time.Minute))
			calls := 0
			fetch := func(context.Context) (model.ProfileDocuments, error) {
				calls++
				return v, nil
			}
			_, err1 := rc.GetOrFetch(ctx, domaincache.NewKey("Kazzak", "Foo"), fetch)
			_, err2 := rc.GetOrFetch(ctx, domaincache.NewKey("kazzak", "foo"), fetch)

			Convey("Then the second lookup is served from Redis", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(calls, ShouldEqual, 1)
				So(mr.Exists("test:kazzak_foo"), ShouldBeTrue)
			})
		})
	})

	Convey("Given no Redis server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := rediscache.Dial(ctx, "127.0.0.1:1", "", 0)

		Convey("Then Dial fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
