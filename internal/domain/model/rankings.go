package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ZoneRankings is the performance summary of a character for one zone.
// The zero value means "no data".
type ZoneRankings struct {
	BestPerformanceAverage   float64            `json:"bestPerformanceAverage"`
	MedianPerformanceAverage float64            `json:"medianPerformanceAverage"`
	Difficulty               WholeInt           `json:"difficulty"`
	Metric                   string             `json:"metric"`
	Partition                WholeInt           `json:"partition"`
	Zone                     WholeInt           `json:"zone"`
	ServerRank               WholeInt           `json:"serverRank"`
	Spec                     string             `json:"spec,omitempty"`
	AllStars                 []AllStars         `json:"allStars,omitempty"`
	Rankings                 []EncounterRanking `json:"rankings,omitempty"`
}

// Empty reports whether r carries no ranking data.
func (r ZoneRankings) Empty() bool {
	return r.BestPerformanceAverage == 0 && r.MedianPerformanceAverage == 0 &&
		len(r.Rankings) == 0 && len(r.AllStars) == 0
}

// AllStars is the all-stars standing for one partition and spec.
type AllStars struct {
	Points         float64    `json:"points"`
	PossiblePoints float64    `json:"possiblePoints"`
	Partition      WholeInt   `json:"partition"`
	Rank           LenientInt `json:"rank"`
	RegionRank     LenientInt `json:"regionRank"`
	RankPercent    LenientInt `json:"rankPercent"`
	Spec           string     `json:"spec"`
	ServerRank     WholeInt   `json:"serverRank"`
	Total          WholeInt   `json:"total"`
}

// Encounter identifies a boss.
type Encounter struct {
	ID   WholeInt `json:"id"`
	Name string   `json:"name"`
}

// EncounterRanking is the ranking of a character on one encounter.
type EncounterRanking struct {
	Encounter     Encounter `json:"encounter"`
	RankPercent   *float64  `json:"rankPercent"`
	MedianPercent *float64  `json:"medianPercent"`
	LockedIn      bool      `json:"lockedIn"`
	TotalKills    WholeInt  `json:"totalKills"`
	FastestKill   WholeInt  `json:"fastestKill"`
	AllStars      *AllStars `json:"allStars,omitempty"`
	Spec          string    `json:"spec"`
	BestSpec      string    `json:"bestSpec"`
	BestAmount    float64   `json:"bestAmount"`
	ServerRank    WholeInt  `json:"serverRank"`
}

// WholeInt is an integer field that also accepts floats (5.0, 1e3) and numeric
// strings. Fractions are truncated.
type WholeInt int

// UnmarshalJSON decodes any JSON number or numeric string; null leaves zero.
func (i *WholeInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid integer %s", data)
	}
	*i = WholeInt(f)
	return nil
}

// LenientInt is an integer that decodes as absent instead of failing when the
// upstream sends a non-numeric placeholder such as "-".
type LenientInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON accepts numbers and numeric strings; anything else is absent.
func (i *LenientInt) UnmarshalJSON(data []byte) error {
	*i = LenientInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = s
	}
	if v, err := strconv.Atoi(text); err == nil {
		*i = LenientInt{Value: v, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		*i = LenientInt{Value: int(f), Valid: true}
	}
	return nil
}

// MarshalJSON writes the number, or null when absent.
func (i LenientInt) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.Value)), nil
}
