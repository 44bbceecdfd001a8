// Package event provides the meeting record, its content fingerprint and
// the calendar-date helpers used to decide whether a talk is still upcoming.
//
// A Meeting is identified by the canonical detail URL it was extracted from.
// Its ContentHash is a SHA-256 digest over a fixed set of payload fields, so
// two crawls of an unchanged page always produce the same hash and any edit
// to one of those fields produces a different one.
package event
