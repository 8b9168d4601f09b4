package transfer

// SlotOutcome reports what happened to one due slot during a rotation
// tick. Outcome is "published", "failed", "empty_library" or "skipped".
type SlotOutcome struct {
	SlotID    int64  `json:"slot_id"`
	LibraryID int64  `json:"library_id"`
	Outcome   string `json:"outcome"`
	PostID    int64  `json:"post_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

type RotationSummary struct {
	Processed int           `json:"processed"`
	Details   []SlotOutcome `json:"details"`
}

// PublishOutcome is the per-platform result of publishing one post.
// Kind carries the error taxonomy value for failures so callers can map
// the outcome to a user-facing status without parsing the message.
type PublishOutcome struct {
	Platform       string `json:"platform"`
	PlatformPostID string `json:"platform_post_id,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Error          string `json:"error,omitempty"`
}
