// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"sync"
)

// Identity is a set of browser-like request headers.
type Identity struct {
	UserAgent      string `json:"user_agent" yaml:"user_agent"`
	AcceptLanguage string `json:"accept_language" yaml:"accept_language"`
	Accept         string `json:"accept" yaml:"accept"`
}

// Apply sets the identity headers that req does not already carry.
func (id Identity) Apply(req *http.Request) {
	set := func(k, v string) {
		if v != "" && req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	set("User-Agent", id.UserAgent)
	set("Accept-Language", id.AcceptLanguage)
	set("Accept", id.Accept)
}

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// DefaultIdentities rotate across common desktop browsers.
var DefaultIdentities = []Identity{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Accept:         acceptHTML,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		AcceptLanguage: "en-GB,en;q=0.8",
		Accept:         acceptHTML,
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
		AcceptLanguage: "en-US,en;q=0.5",
		Accept:         acceptHTML,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
		AcceptLanguage: "en-US,en;q=0.9,de;q=0.6",
		Accept:         acceptHTML,
	},
}

// Rotator hands out identities round-robin.
type Rotator struct {
	mu   sync.Mutex
	ids  []Identity
	next int
}

// NewRotator copies ids. An empty list yields a rotator that returns the
// zero Identity, which applies no headers.
func NewRotator(ids []Identity) *Rotator {
	return &Rotator{ids: append([]Identity(nil), ids...)}
}

// Next returns the next identity.
func (r *Rotator) Next() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) == 0 {
		return Identity{}
	}
	id := r.ids[r.next]
	r.next = (r.next + 1) % len(r.ids)
	return id
}
