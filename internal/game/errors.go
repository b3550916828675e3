package game

import "errors"

// Rejections are returned to the requesting user only. They never mutate
// state and are not logged as failures.
var (
	ErrNotAdmin      = errors.New("only an administrator can do that")
	ErrGameInactive  = errors.New("no game is in progress")
	ErrNotJoined     = errors.New("you have not joined the game")
	ErrAlreadyJoined = errors.New("you already joined this game")
	ErrNoNumbersLeft = errors.New("all numbers have been called")
	ErrNotYetCalled  = errors.New("this number has not been called yet")
	ErrInvalidCell   = errors.New("invalid cell position")
)

// IsRejection reports whether err is a user-facing rejection rather than an
// operational failure.
func IsRejection(err error) bool {
	for _, rejection := range []error{
		ErrNotAdmin,
		ErrGameInactive,
		ErrNotJoined,
		ErrAlreadyJoined,
		ErrNoNumbersLeft,
		ErrNotYetCalled,
		ErrInvalidCell,
		ErrAutoCallOn,
		ErrAutoCallOff,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
