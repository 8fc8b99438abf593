package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/okian/armory/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// CharactersHandler serves single, batch and team overviews.
type CharactersHandler struct {
	deps     Dependencies
	maxBatch int
}

// NewCharactersHandler creates a new characters handler.
func NewCharactersHandler(deps Dependencies) *CharactersHandler {
	return &CharactersHandler{deps: deps, maxBatch: DefaultMaxBatch}
}

// batchRequest mirrors the OpenAPI schema for POST /api/characters/overview.
type batchRequest struct {
	Region     string                      `json:"region"`
	Characters []model.CharacterIdentifier `json:"characters"`
}

func (b batchRequest) validate(maxBatch int) error {
	if len(b.Characters) == 0 {
		return fmt.Errorf("%w: characters must not be empty", ErrBadRequest)
	}
	if len(b.Characters) > maxBatch {
		return fmt.Errorf("%w: %d > %d", ErrTooManyCharacters, len(b.Characters), maxBatch)
	}
	for i, c := range b.Characters {
		if strings.TrimSpace(c.Realm) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: characters[%d] needs realm and name", ErrBadRequest, i)
		}
	}
	return nil
}

// HandleCharacter handles GET /api/characters/{realm}/{name}?region=.
func (h *CharactersHandler) HandleCharacter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ov, err := h.deps.CharacterOverview(r.Context(), vars["realm"], vars["name"], r.URL.Query().Get("region"))
	if err != nil {
		if isClientGone(r) {
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// HandleTeam handles GET /api/characters/overview/{team}?region=.
func (h *CharactersHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	h.team(w, r, mux.Vars(r)["team"])
}

// HandleTeamQuery handles GET /api/characters/overview?team=&region=.
func (h *CharactersHandler) HandleTeamQuery(w http.ResponseWriter, r *http.Request) {
	team := strings.TrimSpace(r.URL.Query().Get("team"))
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingTeam)
		return
	}
	h.team(w, r, team)
}

// HandleInvalidate handles DELETE /api/characters/{realm}/{name}/cache.
func (h *CharactersHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.deps.InvalidateCharacter(r.Context(), vars["realm"], vars["name"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CharactersHandler) team(w http.ResponseWriter, r *http.Request, team string) {
	res, err := h.deps.TeamOverviews(r.Context(), team, r.URL.Query().Get("region"))
	if err != nil {
		if isClientGone(r) {
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBatch handles POST /api/characters/overview.
func (h *CharactersHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(h.maxBatch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.deps.Overviews(r.Context(), req.Characters, req.Region)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
