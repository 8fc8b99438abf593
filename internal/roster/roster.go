// Package roster loads named teams of characters from a YAML file.
//
//	teams:
//	  main:
//	    - realm: Kazzak
//	      name: Foo
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/armory/internal/domain/model"
)

// Sentinel errors.
var (
	ErrUnknownTeam = errors.New("unknown team")
	ErrLoadRoster  = errors.New("load roster failed")
)

// Roster maps lower-cased team names to their members.
type Roster struct {
	teams map[string][]model.CharacterIdentifier
}

// New builds a roster from an in-memory map. Team names are matched case-insensitively.
func New(teams map[string][]model.CharacterIdentifier) *Roster {
	r := &Roster{teams: make(map[string][]model.CharacterIdentifier, len(teams))}
	for name, members := range teams {
		key := normalize(name)
		r.teams[key] = append(r.teams[key], members...)
	}
	return r
}

// Empty returns a roster without teams.
func Empty() *Roster {
	return New(nil)
}

// Load reads the roster file at path. An empty path yields an empty roster.
func Load(path string) (*Roster, error) {
	if path == "" {
		return Empty(), nil
	}

	// Team names may contain dots, so use a delimiter that YAML keys will not.
	k := koanf.New("::")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadRoster, path, err)
	}

	var doc struct {
		Teams map[string][]model.CharacterIdentifier `koanf:"teams"`
	}
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadRoster, path, err)
	}

	for team, members := range doc.Teams {
		for i, m := range members {
			if strings.TrimSpace(m.Realm) == "" || strings.TrimSpace(m.Name) == "" {
				return nil, fmt.Errorf("%w: team %q member %d needs realm and name", ErrLoadRoster, team, i)
			}
		}
	}

	return New(doc.Teams), nil
}

// Team returns a copy of the members of team.
func (r *Roster) Team(team string) ([]model.CharacterIdentifier, error) {
	members, ok := r.teams[normalize(team)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
	out := make([]model.CharacterIdentifier, len(members))
	copy(out, members)
	return out, nil
}

// Teams returns the sorted team names.
func (r *Roster) Teams() []string {
	names := make([]string, 0, len(r.teams))
	for name := range r.teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(team string) string {
	return strings.ToLower(strings.TrimSpace(team))
}
