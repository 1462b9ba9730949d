package autosend

import "errors"

// Sentinel errors for the auto-send service.
var (
	ErrTemplateNotFound = errors.New("email template not found")
	ErrUserNotFound     = errors.New("campaign owner not found")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrNoContactList    = errors.New("campaign has no contact list")
)
