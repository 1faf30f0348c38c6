package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/trust-tournament/models"
)

const archivePrefix = "tournaments/"

// ArchiveKey is the object key of a completed tournament.
func ArchiveKey(tournamentID string) string {
	return archivePrefix + tournamentID + ".json"
}

// TournamentArchiver uploads finished tournaments as JSON documents.
type TournamentArchiver struct {
	uploader FileUploader
	logger   *slog.Logger
}

func NewTournamentArchiver(uploader FileUploader, logger *slog.Logger) *TournamentArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TournamentArchiver{uploader: uploader, logger: logger}
}

func (a *TournamentArchiver) ArchiveTournament(ctx context.Context, t *models.Tournament) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("archive: tournament id is required")
	}
	if t.Status != models.TournamentStatusCompleted {
		return fmt.Errorf("archive: tournament %s is %s, not completed", t.ID, t.Status)
	}

	doc, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: failed to encode tournament %s: %w", t.ID, err)
	}
	res, err := a.uploader.Upload(ctx, ArchiveKey(t.ID), "application/json", bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	a.logger.Info("tournament archived",
		slog.String("tournament_id", t.ID),
		slog.String("key", res.Key),
		slog.String("location", res.Location))
	return nil
}
