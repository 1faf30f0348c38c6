package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/go-chi/chi/v5"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
	responder
}

func NewTournamentHandler(ts services.TournamentService, ms services.MatchService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts, matchService: ms, responder: newResponder(logger)}
}

func (h *TournamentHandler) GetCurrentTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.tournamentService.GetCurrentTournament(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tournament": t})
}

func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.tournamentService.GetTournament(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tournament": t})
}

// Advance auto-plays bot-only rounds from the current round and resolves
// leftover bot-vs-bot matches. Operator only.
func (h *TournamentHandler) Advance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tournamentID := chi.URLParam(r, "tournamentID")

	t, err := h.tournamentService.GetTournament(ctx, tournamentID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if t.Status != models.TournamentStatusInProgress {
		h.mapServiceErrorToHTTP(w, r, services.ErrTournamentNotActive)
		return
	}

	t, err = h.tournamentService.AutoPlayBotOnlyRounds(ctx, tournamentID, t.CurrentRoundNumber)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	resolved := 0
	if t.Status == models.TournamentStatusInProgress {
		resolved, err = h.matchService.ResolveBotMatches(ctx, tournamentID, t.CurrentRoundNumber)
		if err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
		if t, err = h.tournamentService.GetTournament(ctx, tournamentID); err != nil {
			h.mapServiceErrorToHTTP(w, r, err)
			return
		}
	}

	h.logger.Info("tournament advanced by operator",
		slog.String("tournament_id", tournamentID),
		slog.Int("current_round", t.CurrentRoundNumber),
		slog.Int("bot_matches_resolved", resolved))
	h.writeOK(w, r, http.StatusOK, jsonResponse{"tournament": t, "bot_matches_resolved": resolved})
}
