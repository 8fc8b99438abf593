package warcraftlogs

import (
	"strings"

	"github.com/okian/armory/internal/adapters/upstream"
)

// QueryError reports GraphQL errors returned without usable data.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return Provider + ": graphql errors: " + strings.Join(e.Messages, "; ")
}

// Is matches upstream.ErrUpstream.
func (e *QueryError) Is(target error) bool { return target == upstream.ErrUpstream }
