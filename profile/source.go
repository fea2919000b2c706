package profile

import (
	"net/url"
	"strings"
)

// Kind distinguishes video pages from everything else.
type Kind int

const (
	KindGeneric Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "generic"
}

// Source is one user-supplied URL.
type Source struct {
	URL  string
	Kind Kind
}

var videoHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// NewSource classifies rawURL by host. Unparseable URLs are generic.
func NewSource(rawURL string) Source {
	src := Source{URL: rawURL, Kind: KindGeneric}
	u, err := url.Parse(rawURL)
	if err != nil {
		return src
	}
	if videoHosts[strings.ToLower(u.Hostname())] {
		src.Kind = KindVideo
	}
	return src
}

// VideoID returns the video identifier for a video source, or "" when the
// URL carries none.
func (s Source) VideoID() string {
	if s.Kind != KindVideo {
		return ""
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	// /shorts/<id>, /embed/<id>, /live/<id>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 2 {
		switch parts[0] {
		case "shorts", "embed", "live":
			return parts[1]
		}
	}
	return ""
}

// DurationHint is the known or unknown length of a video source.
type DurationHint struct {
	Seconds int64
	Known   bool
}

// KnownDuration returns a hint for a video of the given length.
func KnownDuration(seconds int64) DurationHint {
	return DurationHint{Seconds: seconds, Known: true}
}

// UnknownDuration is the hint used when no length could be looked up.
var UnknownDuration = DurationHint{}

// Minutes returns the length rounded to whole minutes.
func (d DurationHint) Minutes() int64 {
	return (d.Seconds + 30) / 60
}
