// Package storage persists monitored pages, meetings and meeting history in
// a SQLite database.
//
// Meetings are keyed by their detail-page URL. UpsertMeeting compares the
// incoming content hash with the stored one: identical content only refreshes
// last_seen_at, while changed content first copies the previous payload into
// meeting_history and then overwrites the meeting. History rows are never
// updated or deleted except through the cascade when a meeting is removed.
//
// The default database location is ~/.local/share/talkwatch/talkwatch.db.
package storage
