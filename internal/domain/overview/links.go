package overview

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/okian/armory/internal/domain/model"
)

// Links are the public profile pages of a character.
type Links struct {
	Blizzard     string
	RaiderIO     string
	WarcraftLogs string
}

// ProfileLinks builds the public profile URLs for a character.
func ProfileLinks(region, realm, name, season string) Links {
	region = strings.ToLower(strings.TrimSpace(region))
	slug := url.PathEscape(model.RealmSlug(realm))
	lname := url.PathEscape(strings.ToLower(strings.TrimSpace(name)))

	l := Links{
		Blizzard:     fmt.Sprintf("https://worldofwarcraft.blizzard.com/en-gb/character/%s/%s/%s", region, slug, lname),
		RaiderIO:     fmt.Sprintf("https://raider.io/characters/%s/%s/%s", region, slug, lname),
		WarcraftLogs: fmt.Sprintf("https://www.warcraftlogs.com/character/%s/%s/%s", region, slug, lname),
	}
	if season != "" {
		l.RaiderIO += "?season=" + url.QueryEscape(season)
	}
	return l
}
