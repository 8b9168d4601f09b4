package transfer

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// BlueskyConnect is the body of the bluesky connect request. Bluesky has
// no OAuth redirect flow here; the user supplies an app password and the
// server opens a session directly.
type BlueskyConnect struct {
	Handle      string `json:"handle"`
	AppPassword string `json:"app_password"`
}
