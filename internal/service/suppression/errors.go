package suppression

import "errors"

// Sentinel errors for the suppression service layer.
var (
	ErrNotFound        = errors.New("suppression entry not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrEmailRequired   = errors.New("email is required")
)
