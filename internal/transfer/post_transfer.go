package transfer

// PostCreation is the multipart form body of the create post endpoint.
// Platforms is comma separated. Overrides maps a platform name to text
// that replaces the shared content on that platform only.
type PostCreation struct {
	Content       string `form:"content"`
	Platforms     string `form:"platforms"`
	LibraryID     int64  `form:"library_id"`
	ScheduledTime string `form:"scheduled_time"`
	Overrides     string `form:"overrides"` // JSON object, platform -> text
}

type LibraryCreation struct {
	Name        string `json:"name"`
	Platforms   string `json:"platforms"`
	AutoRewrite bool   `json:"auto_rewrite"`
	Tone        string `json:"tone"`
	Length      string `json:"length"`
	Hashtags    string `json:"hashtags"`
}

type LibraryUpdate struct {
	Name        string `json:"name"`
	Paused      bool   `json:"paused"`
	Platforms   string `json:"platforms"`
	AutoRewrite bool   `json:"auto_rewrite"`
	Tone        string `json:"tone"`
	Length      string `json:"length"`
	Hashtags    string `json:"hashtags"`
}

type SlotCreation struct {
	LibraryID int64  `json:"library_id"`
	DayOfWeek int    `json:"day_of_week"`
	TimeOfDay string `json:"time_of_day"`
	Platforms string `json:"platforms"`
}
