package apperror

import "errors"

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchAlreadyExists     = errors.New("match already exists")
	ErrMatchFull              = errors.New("match is full")
	ErrMatchNotWaiting        = errors.New("match is not waiting for an opponent")
	ErrMatchNotPlaying        = errors.New("match is not being played")
	ErrMatchNotFinished       = errors.New("match is not finished")
	ErrMatchNotExpired        = errors.New("match waiting window has not elapsed")
	ErrMatchOver              = errors.New("match is already over")
	ErrCreatorLeft            = errors.New("match creator has left")
	ErrNotYourTurn            = errors.New("it's not your turn")
	ErrActionAlreadySubmitted = errors.New("action already submitted for this turn")
	ErrTurnNotReady           = errors.New("turn is not ready to be resolved")
	ErrStaleTurn              = errors.New("turn was already resolved")
	ErrNoForfeit              = errors.New("no player has forfeited")
	ErrUnknownSlot            = errors.New("unknown player slot")
	ErrInvalidAction          = errors.New("invalid action")
	ErrInvalidCode            = errors.New("invalid match code")
	ErrResolutionFailed       = errors.New("turn resolution failed")
)

var preconditions = []error{
	ErrMatchNotFound,
	ErrMatchAlreadyExists,
	ErrMatchFull,
	ErrMatchNotWaiting,
	ErrMatchNotPlaying,
	ErrMatchNotFinished,
	ErrMatchNotExpired,
	ErrMatchOver,
	ErrCreatorLeft,
	ErrNotYourTurn,
	ErrActionAlreadySubmitted,
	ErrTurnNotReady,
	ErrStaleTurn,
	ErrNoForfeit,
}

// IsPrecondition reports whether err means the match was not in the state the caller
// expected. Such errors are no-ops: the next snapshot carries the true state.
func IsPrecondition(err error) bool {
	for _, target := range preconditions {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
