package extract

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"mvdan.cc/xurls/v2"
)

var (
	// ErrNoVideo is returned when the content does not link to YouTube at all
	ErrNoVideo = errors.New("no youtube link found")
	// ErrMalformed is returned when a YouTube link was found, but no usable video ID
	ErrMalformed = errors.New("malformed youtube video id")
)

var (
	urlRegexp = xurls.Strict()

	videoRegexp = regexp.MustCompile(
		`(?i)^(?:https?://)?(?:(?:www|m|music)\.)?(?:youtu\.be/|youtube(?:-nocookie)?\.com/(?:watch\?(?:[^#]*&)?v=|shorts/|embed/|live/|v/)?)([A-Za-z0-9_-]+)`,
	)

	idRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	// path segments the video pattern can pick up from non-video links,
	// f.e. youtube.com/playlist?list=…
	reserved = map[string]struct{}{
		"playlist": {},
		"watch":    {},
		"channel":  {},
	}
)

// VideoID returns the first YouTube video ID linked in content
func VideoID(content string) (string, error) {
	var found bool

	for _, link := range urlRegexp.FindAllString(content, -1) {
		match := videoRegexp.FindStringSubmatch(link)
		if len(match) < 2 {
			continue
		}
		found = true

		if !Valid(match[1]) {
			continue
		}

		return match[1], nil
	}

	if found {
		return "", ErrMalformed
	}

	return "", ErrNoVideo
}

// Valid reports whether id looks like a YouTube video ID
func Valid(id string) bool {
	if id == "" {
		return false
	}

	if _, ok := reserved[strings.ToLower(id)]; ok {
		return false
	}

	return idRegexp.MatchString(id)
}
