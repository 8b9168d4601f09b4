package transfer

type LinkedinTokenResponse struct {
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

type LinkedinUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

type LinkedinRegisterUploadRequest struct {
	RegisterUploadRequest LinkedinRegisterUpload `json:"registerUploadRequest"`
}

type LinkedinRegisterUpload struct {
	Recipes              []string                      `json:"recipes"`
	Owner                string                        `json:"owner"`
	ServiceRelationships []LinkedinServiceRelationship `json:"serviceRelationships"`
}

type LinkedinServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type LinkedinRegisterUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			MediaUploadHTTPRequest struct {
				UploadURL string            `json:"uploadUrl"`
				Headers   map[string]string `json:"headers"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type LinkedinShareText struct {
	Text string `json:"text"`
}

type LinkedinShareMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

type LinkedinShareContent struct {
	ShareCommentary    LinkedinShareText    `json:"shareCommentary"`
	ShareMediaCategory string               `json:"shareMediaCategory"`
	Media              []LinkedinShareMedia `json:"media,omitempty"`
}

type LinkedinUGCPost struct {
	Author          string                          `json:"author"`
	LifecycleState  string                          `json:"lifecycleState"`
	SpecificContent map[string]LinkedinShareContent `json:"specificContent"`
	Visibility      map[string]string               `json:"visibility"`
}

type LinkedinUGCPostResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
