// Package overview merges profile and performance data into a CharacterOverview.
package overview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/armory/internal/domain/model"
)

// Default merger configuration constants.
const (
	DefaultRegion         = "eu"
	DefaultRaiderIOSeason = "season-tww-2"
	defaultLocale         = "en_GB"
)

// Option applies a configuration option to the Merger.
type Option func(*Merger)

// WithRaiderIOSeason sets the season parameter of the Raider.IO link.
func WithRaiderIOSeason(season string) Option {
	return func(m *Merger) {
		if season != "" {
			m.season = season
		}
	}
}

// WithLocale sets the preferred key when names arrive as localized maps.
func WithLocale(locale string) Option {
	return func(m *Merger) {
		if locale != "" {
			m.locale = locale
		}
	}
}

// Input holds everything needed to build one overview.
type Input struct {
	Profile  json.RawMessage
	Mythic   json.RawMessage // empty when the character has no keystone profile
	Rankings model.ZoneRankings
	Region   string
}

// Merger builds CharacterOverview values. It holds no mutable state.
type Merger struct {
	season string
	locale string
}

// NewMerger creates a Merger.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{season: DefaultRaiderIOSeason, locale: defaultLocale}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type profileDoc struct {
	Name           localized `json:"name"`
	CharacterClass namedRef  `json:"character_class"`
	Realm          namedRef  `json:"realm"`
	ItemLevel      float64   `json:"equipped_item_level"`
	ActiveSpec     namedRef  `json:"active_spec"`
}

type namedRef struct {
	Name localized `json:"name"`
}

type mythicDoc struct {
	Current *struct {
		Rating *float64 `json:"rating"`
		Color  *struct {
			R *float64 `json:"r"`
			G *float64 `json:"g"`
			B *float64 `json:"b"`
			A *float64 `json:"a"`
		} `json:"color"`
	} `json:"current_mythic_rating"`
}

// localized accepts a plain string or a locale -> string map.
type localized map[string]string

func (l *localized) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = localized{"": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("expected string or localized map: %w", err)
	}
	*l = m
	return nil
}

func (l localized) in(locale string) string {
	if s, ok := l[""]; ok {
		return s
	}
	if s, ok := l[locale]; ok {
		return s
	}
	if s, ok := l["en_US"]; ok {
		return s
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return l[keys[0]]
}

// Merge combines the documents into an overview. Only unparseable documents fail.
func (m *Merger) Merge(in Input) (model.CharacterOverview, error) {
	if isEmpty(in.Profile) {
		return model.CharacterOverview{}, &MergeError{Doc: "profile", Err: errors.New("empty document")}
	}
	var p profileDoc
	if err := json.Unmarshal(in.Profile, &p); err != nil {
		return model.CharacterOverview{}, &MergeError{Doc: "profile", Err: err}
	}

	rating, color, hasRating, err := m.mythic(in.Mythic)
	if err != nil {
		return model.CharacterOverview{}, err
	}

	region := in.Region
	if region == "" {
		region = DefaultRegion
	}

	name := p.Name.in(m.locale)
	class := p.CharacterClass.Name.in(m.locale)
	realm := p.Realm.Name.in(m.locale)
	spec := p.ActiveSpec.Name.in(m.locale)
	links := ProfileLinks(region, realm, name, m.season)

	return model.CharacterOverview{
		Name:               name,
		ClassName:          class,
		RealmName:          realm,
		EquippedItemLevel:  int(p.ItemLevel),
		ClassIconURL:       ClassIconURL(class),
		MythicRating:       rating,
		MythicRatingColor:  color,
		HasMythicRating:    hasRating,
		ActiveSpec:         spec,
		Role:               RoleFor(class, spec),
		BestPerfAvgScore:   in.Rankings.BestPerformanceAverage,
		HasPerformanceData: !in.Rankings.Empty(),
		BlizzardURL:        links.Blizzard,
		RaiderIOURL:        links.RaiderIO,
		WarcraftLogsURL:    links.WarcraftLogs,
	}, nil
}

func (m *Merger) mythic(raw json.RawMessage) (int, string, bool, error) {
	if isEmpty(raw) {
		return 0, FormatRGBA(255, 255, 255, 1), false, nil
	}
	var d mythicDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		return 0, "", false, &MergeError{Doc: "mythic", Err: err}
	}
	if d.Current == nil {
		return 0, FormatRGBA(255, 255, 255, 1), false, nil
	}

	rating := 0
	if d.Current.Rating != nil {
		rating = int(*d.Current.Rating)
	}
	r, g, b, a := 255.0, 255.0, 255.0, 1.0
	if c := d.Current.Color; c != nil {
		r, g, b, a = or(c.R, r), or(c.G, g), or(c.B, b), or(c.A, a)
	}
	return rating, FormatRGBA(int(r), int(g), int(b), a), true, nil
}

// FormatRGBA renders a color as rgba(r,g,b,a) with alpha to two decimals.
func FormatRGBA(r, g, b int, a float64) string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.2f)", r, g, b, a)
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func isEmpty(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}
