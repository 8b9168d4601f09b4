package platform

import (
	"fmt"
	"net/http"
	"time"

	config "github.com/postloop/postloop/configs"
)

const (
	Facebook  = "facebook"
	LinkedIn  = "linkedin"
	Instagram = "instagram"
	TikTok    = "tiktok"
	Bluesky   = "bluesky"
)

// Registry holds the closed set of publish adapters, keyed by platform
// identifier. Adapters are constructed once; there is no runtime
// registration.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(cfg config.Config, client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	adapters := map[string]Adapter{
		Facebook:  NewFacebookAdapter(client),
		LinkedIn:  NewLinkedInAdapter(client),
		Instagram: NewInstagramAdapter(client),
		TikTok:    NewTikTokAdapter(client),
		Bluesky:   NewBlueskyAdapter(client, cfg.BlueskyDirectoryURL),
	}

	return &Registry{adapters: adapters}
}

func (r *Registry) Get(name string) (Adapter, error) {
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", name)
	}
	return adapter, nil
}

func (r *Registry) Limits(name string) Limits {
	if adapter, ok := r.adapters[name]; ok {
		return adapter.Limits()
	}
	return Limits{}
}

// Known reports whether name is one of the registered platforms.
func (r *Registry) Known(name string) bool {
	_, ok := r.adapters[name]
	return ok
}
