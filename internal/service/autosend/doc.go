// Package autosend sends campaign templates to contact lists without
// per-message review.
//
// Each sweep walks the active auto-send campaigns, works out how much of a
// campaign's daily limit is left, and sends to list members that have no
// communication history for that campaign yet. Sends are sequential with
// the campaign's delay between messages.
//
// Repository implementations live in repository/postgres/.
package autosend
