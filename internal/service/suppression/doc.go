// Package suppression owns the do-not-email list.
//
// An address lands here when its owner follows a signed unsubscribe link
// or an admin blocks it. The drip engine checks the list before every
// send and the auto-send recipient query excludes suppressed addresses.
//
// The service depends only on the Repository interface defined in
// repository.go.
package suppression
