package transfer

type FacebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type FacebookUserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

type FacebookPhotoResponse struct {
	ID     string         `json:"id"`
	PostID string         `json:"post_id"`
	Error  *FacebookError `json:"error"`
}

type FacebookFeedResponse struct {
	ID    string         `json:"id"`
	Error *FacebookError `json:"error"`
}

type FacebookError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
