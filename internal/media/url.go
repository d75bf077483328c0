package media

import (
	"net/url"
	"strings"
)

// sourceDomains are the hosts accepted as video sources.
var sourceDomains = []string{
	"youtube.com",
	"youtu.be",
	"m.youtube.com",
	"youtube-nocookie.com",
}

// IsValidSourceURL reports whether text is a link to a video on a known
// source platform. It never returns an error; anything unparsable is
// simply rejected.
func IsValidSourceURL(text string) bool {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !isSourceHost(host) {
		return false
	}

	// Short-link host carries the video ID in the path.
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/") != ""
	}

	// Canonical hosts carry it in ?v= or an /embed/<id> path.
	if u.Query().Get("v") != "" {
		return true
	}
	return embedID(u.Path) != ""
}

// VideoID extracts the video identifier from a URL, or "" when none is found.
func VideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	return embedID(u.Path)
}

func isSourceHost(host string) bool {
	for _, d := range sourceDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func embedID(path string) string {
	const marker = "/embed/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(marker):]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
