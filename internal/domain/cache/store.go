// Package cache memoizes profile documents per character for a bounded time.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/okian/armory/internal/domain/model"
)

// Key identifies a cached character. NewKey normalizes realm and name so
// lookups are case-insensitive.
type Key struct {
	Realm string
	Name  string
}

// NewKey builds a normalized key.
func NewKey(realm, name string) Key {
	return Key{Realm: model.RealmSlug(realm), Name: strings.ToLower(strings.TrimSpace(name))}
}

// String renders the key as realm_name.
func (k Key) String() string {
	return k.Realm + "_" + k.Name
}

// Store holds cached documents with a per-entry TTL. Expired entries must
// never be returned by Get.
type Store interface {
	Get(ctx context.Context, key string) (model.ProfileDocuments, bool, error)
	Set(ctx context.Context, key string, v model.ProfileDocuments, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
}

// Sweeper is implemented by stores that need expired entries removed in the background.
type Sweeper interface {
	Sweep() int
}
