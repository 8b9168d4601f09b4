package transfer

import "time"

type InstagramToken struct {
	UserID      int       `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// InstagramOAuthToken is the short-lived token the code exchange
// returns. It is immediately traded for a long-lived one.
type InstagramOAuthToken struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
}

type InstagramLongLivedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type InstagramUserInfo struct {
	UserID         string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type"`
	ProfilePicture string `json:"profile_picture_url"`
}

type InstagramContainerResponse struct {
	ID    string          `json:"id"`
	Error *InstagramError `json:"error"`
}

type InstagramStatusResponse struct {
	ID         string          `json:"id"`
	StatusCode string          `json:"status_code"`
	Error      *InstagramError `json:"error"`
}

type InstagramPublishResponse struct {
	ID    string          `json:"id"`
	Error *InstagramError `json:"error"`
}

type InstagramError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
