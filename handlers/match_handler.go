package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/trust-tournament/services"
	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	matchService services.MatchService
	responder
}

func NewMatchHandler(ms services.MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{matchService: ms, responder: newResponder(logger)}
}

type submitChoiceInput struct {
	Address string `json:"address"`
	Choice  *int   `json:"choice"`
}

func (h *MatchHandler) SubmitChoice(w http.ResponseWriter, r *http.Request) {
	var input submitChoiceInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.Address) == "" || input.Choice == nil {
		h.badRequestResponse(w, r, errors.New("address and choice are required"))
		return
	}

	record, err := h.matchService.SubmitChoice(r.Context(), chi.URLParam(r, "matchID"), input.Address, *input.Choice)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"match": record})
}

func (h *MatchHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.matchService.Resolve(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{
		"match":      res.Match,
		"tournament": res.Tournament,
		"rematch":    res.Rematch,
	})
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	record, err := h.matchService.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"match": record})
}

func (h *MatchHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	records, err := h.matchService.History(r.Context(), chi.URLParam(r, "address"), limit)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"matches": records})
}
