// Package report is the client side of the overview CLI: it asks a running
// server for a team or ad-hoc batch and renders the result.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/armory/internal/domain/model"
)

// Config holds configuration for one report run.
type Config struct {
	BaseURL    string                      // Base URL of the service
	Team       string                      // Team to resolve; ignored when Characters is set
	Characters []model.CharacterIdentifier // Ad-hoc batch
	Region     string                      // Region passed to the service
	Timeout    time.Duration               // HTTP request timeout
	OutputFile string                      // Optional JSON output file
	Verbose    bool                        // Print failures in detail
}

// Errors returned by Run and the flag helpers.
var (
	ErrNothingToReport = errors.New("either a team or characters are required")
	ErrBadCharacter    = errors.New("characters must be realm/name pairs")
	ErrServer          = errors.New("server returned an error")
)

// Validate checks that the run has something to resolve.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Team) == "" && len(c.Characters) == 0 {
		return ErrNothingToReport
	}
	return nil
}

// ParseCharacters splits "Realm/Name,Other Realm/Name" into identifiers.
func ParseCharacters(s string) ([]model.CharacterIdentifier, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []model.CharacterIdentifier
	for _, part := range strings.Split(s, ",") {
		realm, name, ok := strings.Cut(strings.TrimSpace(part), "/")
		realm, name = strings.TrimSpace(realm), strings.TrimSpace(name)
		if !ok || realm == "" || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadCharacter, part)
		}
		out = append(out, model.CharacterIdentifier{Realm: realm, Name: name})
	}
	return out, nil
}
