package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrItemNotFound = errors.New("item not found")
	ErrNoBids       = errors.New("no bids found for item")
	ErrUserNoBids   = errors.New("user has not placed any bids")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
)

// ErrInvalidUsername rejects registrations outside the allowed length
var ErrInvalidUsername = errors.New("username must be 3-20 characters")

// business logic errors
var (
	ErrInvalidBid            = errors.New("invalid bid")
	ErrBidTooLow             = errors.New("bid amount too low")
	ErrNonPositiveAmount     = errors.New("bid amount must be positive")
	ErrItemClosed            = errors.New("auction is closed")
	ErrNotOwner              = errors.New("requester does not own the item")
	ErrAlreadyClosed         = errors.New("auction already closed")
	ErrInvalidCreationParams = errors.New("invalid item parameters")
	ErrUnauthenticated       = errors.New("unauthenticated request")
)

// ErrTransientConflict reports lock or transaction contention. It is the only
// kind callers (and the bidding service) may retry.
var ErrTransientConflict = errors.New("transient conflict, retry later")

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientConflict)
}
