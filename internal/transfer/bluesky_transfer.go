package transfer

import "encoding/json"

type BlueskySession struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

type BlueskyDIDDocument struct {
	ID      string               `json:"id"`
	Service []BlueskyDIDService  `json:"service"`
}

type BlueskyDIDService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

type BlueskyBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

type BlueskyImageEmbed struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

type BlueskyEmbed struct {
	Type   string              `json:"$type"`
	Images []BlueskyImageEmbed `json:"images"`
}

type BlueskyPostRecord struct {
	Type      string        `json:"$type"`
	Text      string        `json:"text"`
	CreatedAt string        `json:"createdAt"`
	Embed     *BlueskyEmbed `json:"embed,omitempty"`
}

type BlueskyCreateRecordRequest struct {
	Repo       string            `json:"repo"`
	Collection string            `json:"collection"`
	Record     BlueskyPostRecord `json:"record"`
}

type BlueskyCreateRecordResponse struct {
	URI     string `json:"uri"`
	CID     string `json:"cid"`
	Message string `json:"message"`
}
