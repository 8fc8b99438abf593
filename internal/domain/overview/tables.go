package overview

import (
	"strings"

	"github.com/okian/armory/internal/domain/model"
)

const iconBaseURL = "https://raw.githubusercontent.com/orourkek/Wow-Icons/master/images/class/64/"

// DefaultClassIconURL is used for blank or unknown classes.
const DefaultClassIconURL = iconBaseURL + "default.png"

// classIcons is keyed by classKey. Evoker has no icon in the set and falls back.
var classIcons = map[string]string{
	"deathknight": iconBaseURL + "deathknight.png",
	"demonhunter": iconBaseURL + "demonhunter.png",
	"druid":       iconBaseURL + "druid.png",
	"hunter":      iconBaseURL + "hunter.png",
	"mage":        iconBaseURL + "mage.png",
	"monk":        iconBaseURL + "monk.png",
	"paladin":     iconBaseURL + "paladin.png",
	"priest":      iconBaseURL + "priest.png",
	"rogue":       iconBaseURL + "rogue.png",
	"shaman":      iconBaseURL + "shaman.png",
	"warlock":     iconBaseURL + "warlock.png",
	"warrior":     iconBaseURL + "warrior.png",
}

// specRoles lists the non-DPS specializations per class; anything absent is DPS.
var specRoles = map[string]map[string]model.Role{
	"warrior":     {"protection": model.RoleTank},
	"paladin":     {"holy": model.RoleHealer, "protection": model.RoleTank},
	"priest":      {"discipline": model.RoleHealer, "holy": model.RoleHealer},
	"deathknight": {"blood": model.RoleTank},
	"shaman":      {"restoration": model.RoleHealer},
	"monk":        {"mistweaver": model.RoleHealer, "brewmaster": model.RoleTank},
	"druid":       {"restoration": model.RoleHealer, "guardian": model.RoleTank},
	"demonhunter": {"vengeance": model.RoleTank},
	"evoker":      {"preservation": model.RoleHealer},
}

// classKey lowercases and drops all whitespace: "Death Knight" -> "deathknight".
func classKey(class string) string {
	return strings.Join(strings.Fields(strings.ToLower(class)), "")
}

// ClassIconURL resolves the icon for a class name; it never fails.
func ClassIconURL(class string) string {
	if u, ok := classIcons[classKey(class)]; ok {
		return u
	}
	return DefaultClassIconURL
}

// RoleFor derives the role of a class/specialization pair; it never fails.
func RoleFor(class, spec string) model.Role {
	if role, ok := specRoles[classKey(class)][strings.ToLower(strings.TrimSpace(spec))]; ok {
		return role
	}
	return model.RoleDPS
}
