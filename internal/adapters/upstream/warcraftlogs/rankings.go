package warcraftlogs

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/domain/model"
)

// payloadKind is the JSON shape of a zoneRankings value.
type payloadKind int

const (
	kindAbsent payloadKind = iota // missing or null
	kindObject
	kindString
	kindEmptyArray
	kindOther
)

func (k payloadKind) String() string {
	switch k {
	case kindAbsent:
		return "absent"
	case kindObject:
		return "object"
	case kindString:
		return "string"
	case kindEmptyArray:
		return "empty array"
	default:
		return "unsupported"
	}
}

func classify(raw json.RawMessage) payloadKind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return kindAbsent
	}
	switch raw[0] {
	case '{':
		return kindObject
	case '"':
		return kindString
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil && len(items) == 0 {
			return kindEmptyArray
		}
	}
	return kindOther
}

// DecodeZoneRankings decodes the polymorphic zoneRankings field. An object is
// decoded directly, a string is decoded once more as an object, and absent,
// null, empty array or empty string all mean "no data" and yield the zero value.
func DecodeZoneRankings(raw json.RawMessage) (model.ZoneRankings, error) {
	switch kind := classify(raw); kind {
	case kindAbsent, kindEmptyArray:
		return model.ZoneRankings{}, nil
	case kindObject:
		return decodeObject(raw)
	case kindString:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return model.ZoneRankings{}, malformed("zoneRankings string", err)
		}
		if strings.TrimSpace(text) == "" {
			return model.ZoneRankings{}, nil
		}
		inner := json.RawMessage(text)
		switch classify(inner) {
		case kindObject:
			return decodeObject(inner)
		case kindAbsent, kindEmptyArray:
			return model.ZoneRankings{}, nil
		default:
			return model.ZoneRankings{}, malformed("zoneRankings string does not hold an object", nil)
		}
	default:
		return model.ZoneRankings{}, malformed("zoneRankings is "+kind.String(), nil)
	}
}

func decodeObject(raw json.RawMessage) (model.ZoneRankings, error) {
	var zr model.ZoneRankings
	if err := json.Unmarshal(raw, &zr); err != nil {
		return model.ZoneRankings{}, malformed("zoneRankings object", err)
	}
	return zr, nil
}

func malformed(reason string, err error) error {
	return &upstream.MalformedError{Provider: Provider, Reason: reason, Err: err}
}
