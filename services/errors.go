package services

import "errors"

// Общие ошибки, используемые в сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed = errors.New("validation failed")

	// Конфликт параллельной записи агрегата
	ErrConcurrentUpdate = errors.New("tournament was modified concurrently, retry")
)

// Entity specific errors wrap the generic ones so errors.Is works on both levels.
var (
	ErrTournamentNotFound = wrapSentinel(ErrNotFound, "tournament not found")
	ErrRoundNotFound      = wrapSentinel(ErrNotFound, "round not found")
	ErrMatchNotFound      = wrapSentinel(ErrNotFound, "match not found")
	ErrPlayerNotFound     = wrapSentinel(ErrNotFound, "player not found")

	ErrNotEnoughSeeds         = wrapSentinel(ErrValidationFailed, "at least two participants are required to start a tournament")
	ErrInvalidWinner          = wrapSentinel(ErrValidationFailed, "winner is not a participant of the match")
	ErrMatchAlreadyCompleted  = wrapSentinel(ErrValidationFailed, "match is already completed with a different winner")
	ErrInvalidAdvancingList   = wrapSentinel(ErrValidationFailed, "advancing players do not match the previous round winners")
	ErrRoundNotSeeded         = wrapSentinel(ErrValidationFailed, "round has no pairings yet")
	ErrRoundNotCompleted      = wrapSentinel(ErrValidationFailed, "previous round is not completed")
	ErrTournamentNotActive    = wrapSentinel(ErrValidationFailed, "tournament is not in progress")
	ErrMatchNotPlayable       = wrapSentinel(ErrValidationFailed, "match cannot be played")
	ErrChoicesPending         = wrapSentinel(ErrValidationFailed, "waiting for player choices")
	ErrChoiceAlreadySubmitted = wrapSentinel(ErrValidationFailed, "choice already submitted")
	ErrNotMatchParticipant    = wrapSentinel(ErrValidationFailed, "address is not a participant of the match")
	ErrInvalidChoice          = wrapSentinel(ErrValidationFailed, "invalid choice")
	ErrMatchAlreadyResolved   = wrapSentinel(ErrValidationFailed, "match is already resolved")
	ErrLobbyNotJoined         = wrapSentinel(ErrValidationFailed, "connection has not joined the lobby")
	ErrLobbyEmpty             = wrapSentinel(ErrValidationFailed, "lobby has no human participants")
	ErrInvalidSort            = wrapSentinel(ErrValidationFailed, "invalid sort field")
)

type sentinel struct {
	parent error
	msg    string
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.parent }

func wrapSentinel(parent error, msg string) error {
	return &sentinel{parent: parent, msg: msg}
}
