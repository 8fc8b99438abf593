// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strings"
)

// CharacterIdentifier names one character on one realm.
type CharacterIdentifier struct {
	Realm string `json:"realm" koanf:"realm"`
	Name  string `json:"name" koanf:"name"`
}

// RealmSlug returns the realm in URL form: trimmed, lowercased, whitespace runs
// collapsed to a single hyphen.
func (c CharacterIdentifier) RealmSlug() string {
	return RealmSlug(c.Realm)
}

// LowerName returns the lowercased character name used in upstream URLs.
func (c CharacterIdentifier) LowerName() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// String renders realm/name for logs.
func (c CharacterIdentifier) String() string {
	return c.Realm + "/" + c.Name
}

// RealmSlug normalizes a realm display name, e.g. " Argent  Dawn" -> "argent-dawn".
func RealmSlug(realm string) string {
	return strings.Join(strings.Fields(strings.ToLower(realm)), "-")
}

// Role is the derived group role of a specialization.
type Role string

// Supported roles.
const (
	RoleTank   Role = "Tank"
	RoleHealer Role = "Healer"
	RoleDPS    Role = "DPS"
)

// CharacterOverview is the merged view of one character.
type CharacterOverview struct {
	Name              string  `json:"name"`
	ClassName         string  `json:"className"`
	RealmName         string  `json:"realmName"`
	EquippedItemLevel int     `json:"equippedItemLevel"`
	ClassIconURL      string  `json:"classIconUrl"`
	MythicRating      int     `json:"mythicRating"`
	MythicRatingColor string  `json:"mythicRatingColor"`
	HasMythicRating   bool    `json:"hasMythicRating"`
	ActiveSpec        string  `json:"activeSpec"`
	Role              Role    `json:"role"`
	BestPerfAvgScore  float64 `json:"bestPerfAvgScore"`
	// HasPerformanceData is false when the character has no logs for the zone.
	HasPerformanceData bool `json:"hasPerformanceData"`

	BlizzardURL     string `json:"blizzardUrl,omitempty"`
	RaiderIOURL     string `json:"raiderIoUrl,omitempty"`
	WarcraftLogsURL string `json:"warcraftLogsUrl,omitempty"`
}

// ProfileDocuments holds the raw profile provider documents for one character.
// Mythic is empty when the character has no keystone profile this season.
type ProfileDocuments struct {
	Profile json.RawMessage `json:"profile"`
	Mythic  json.RawMessage `json:"mythic,omitempty"`
}
