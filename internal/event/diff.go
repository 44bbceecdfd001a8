package event

// FieldChange describes one payload field that differs between two versions
// of a meeting
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// payloadFields lists payload fields in fingerprint order with accessors.
var payloadFields = []struct {
	name string
	get  func(Payload) string
}{
	{"source_page_url", func(p Payload) string { return p.SourcePageURL }},
	{"source_url", func(p Payload) string { return p.SourceURL }},
	{"title", func(p Payload) string { return Deref(p.Title) }},
	{"start_time", func(p Payload) string { return Deref(p.StartTime) }},
	{"location", func(p Payload) string { return Deref(p.Location) }},
	{"speaker", func(p Payload) string { return Deref(p.Speaker) }},
	{"topic", func(p Payload) string { return Deref(p.Topic) }},
	{"abstract", func(p Payload) string { return Deref(p.Abstract) }},
	{"mode", func(p Payload) string { return Deref(p.Mode) }},
	{"online_link", func(p Payload) string { return Deref(p.OnlineLink) }},
	{"speaker_intro", func(p Payload) string { return Deref(p.SpeakerIntro) }},
	{"speaker_intro_url", func(p Payload) string { return Deref(p.SpeakerIntroURL) }},
}

// DetectChanges compares two payloads field by field.
// Absent and empty values compare equal.
func DetectChanges(previous, current Payload) []FieldChange {
	var changes []FieldChange
	for _, f := range payloadFields {
		oldValue, newValue := f.get(previous), f.get(current)
		if oldValue != newValue {
			changes = append(changes, FieldChange{
				Field:    f.name,
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}
	return changes
}

// RevisionChange pairs a revision with the changes that replaced it
type RevisionChange struct {
	Revision *Revision
	Changes  []FieldChange
}

// History walks revisions oldest first and reports, for each one, which
// fields the next version changed. The newest revision is compared with
// the meeting's current payload.
func History(current *Meeting, revisions []*Revision) []RevisionChange {
	out := make([]RevisionChange, 0, len(revisions))
	for i, rev := range revisions {
		next := current.Payload()
		if i+1 < len(revisions) {
			next = revisions[i+1].Payload
		}
		out = append(out, RevisionChange{
			Revision: rev,
			Changes:  DetectChanges(rev.Payload, next),
		})
	}
	return out
}
