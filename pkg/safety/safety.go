// Package safety sanitizes untrusted message content before it is rendered or
// acted upon. It strips markup down to a small inline allow-list, detects
// embedded links, and classifies them as internal or external so callers can
// gate navigation behind an explicit confirmation step.
package safety

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"mvdan.cc/xurls/v2"
)

// MaxMessageLen is the maximum accepted length of an outbound message,
// measured on the raw text before sanitization.
const MaxMessageLen = 1000

// LinkClass says whether following a link leaves the local deployment.
type LinkClass string

const (
	ClassInternal LinkClass = "internal"
	ClassExternal LinkClass = "external"
)

// DetectedLink is a candidate hyperlink found inside a sanitized message
// body. Start and End are byte offsets into the sanitized string.
type DetectedLink struct {
	URL   string
	Text  string
	Start int
	End   int
}

// Segment is one run of a rendered message: either plain sanitized text or a
// link activation point. Concatenating the Text of all segments reproduces
// the sanitized message exactly.
type Segment struct {
	Text     string
	URL      string // empty for plain text runs
	External bool
}

// IsLink reports whether the segment is a link activation point.
func (s Segment) IsLink() bool { return s.URL != "" }

// Activate reports the segment's link to onLink. It never navigates itself;
// the caller decides what to do with an external destination.
func (s Segment) Activate(onLink func(url string, external bool)) {
	if s.URL == "" || onLink == nil {
		return
	}
	onLink(s.URL, s.External)
}

// Validation is the outcome of checking an outbound message. Sanitized is
// populated even when the message is rejected so callers can show what would
// have been sent.
type Validation struct {
	OK        bool
	Sanitized string
	Errors    []string
}

// SanitizedMessage is a message body after sanitization together with the
// links found in it.
type SanitizedMessage struct {
	SanitizedText    string
	Links            []DetectedLink
	HasExternalLinks bool
}

// schemeRE matches an explicit URL scheme prefix such as "https:" or
// "mailto:".
var schemeRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// Pipeline sanitizes and inspects message content. The zero value is not
// usable; construct with New.
type Pipeline struct {
	policy    *bluemonday.Policy
	linkRE    *regexp.Regexp
	localHost string
}

// New builds a Pipeline. localHost is the host of the application's own
// origin; links to it classify as internal.
func New(localHost string) *Pipeline {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("b", "i", "em", "strong", "span")
	policy.AllowAttrs("class").OnElements("b", "i", "em", "strong", "span")

	return &Pipeline{
		policy:    policy,
		linkRE:    xurls.Relaxed(),
		localHost: localHost,
	}
}

// Sanitize strips all markup from raw except the inline emphasis allow-list
// (b, i, em, strong, span with only a class attribute). The result is safe to
// render: it cannot execute script or load external resources.
func (p *Pipeline) Sanitize(raw string) string {
	return p.policy.Sanitize(raw)
}

// DetectLinks scans sanitized text for URL-like substrings. Matches are
// non-overlapping and reported in left-to-right order. Schemeless matches
// such as "example.com" get an http scheme in URL while Text stays as
// matched.
func (p *Pipeline) DetectLinks(sanitized string) []DetectedLink {
	idxs := p.linkRE.FindAllStringIndex(sanitized, -1)
	if len(idxs) == 0 {
		return nil
	}

	links := make([]DetectedLink, 0, len(idxs))
	for _, idx := range idxs {
		text := sanitized[idx[0]:idx[1]]
		u := text
		if !schemeRE.MatchString(text) {
			u = "http://" + text
		}
		links = append(links, DetectedLink{
			URL:   u,
			Text:  text,
			Start: idx[0],
			End:   idx[1],
		})
	}
	return links
}

// Classify says whether a URL points inside the local deployment. Localhost,
// loopback, private-range hosts, and the pipeline's own host are internal.
// Relative or unparseable URLs cannot leave the origin, so they are internal
// too.
func (p *Pipeline) Classify(rawURL string) LinkClass {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ClassInternal
	}

	host := u.Hostname()
	switch {
	case host == "localhost",
		host == "127.0.0.1",
		strings.HasPrefix(host, "10."),
		strings.HasPrefix(host, "172."),
		strings.HasPrefix(host, "192.168."),
		host == p.localHost:
		return ClassInternal
	}
	return ClassExternal
}

// IsExternal reports whether a URL classifies as external.
func (p *Pipeline) IsExternal(rawURL string) bool {
	return p.Classify(rawURL) == ClassExternal
}

// ValidateOutbound checks a raw message before sending. Length limits apply
// to the raw text; the sanitized form is returned either way.
func (p *Pipeline) ValidateOutbound(raw string) Validation {
	var errs []string
	if strings.TrimSpace(raw) == "" {
		errs = append(errs, "message cannot be empty")
	}
	if utf8.RuneCountInString(raw) > MaxMessageLen {
		errs = append(errs, "message is too long (max 1000 characters)")
	}

	return Validation{
		OK:        len(errs) == 0,
		Sanitized: p.Sanitize(raw),
		Errors:    errs,
	}
}

// SanitizeMessage sanitizes raw text and detects the links in the result.
func (p *Pipeline) SanitizeMessage(raw string) SanitizedMessage {
	sanitized := p.Sanitize(raw)
	links := p.DetectLinks(sanitized)

	hasExternal := false
	for _, l := range links {
		if p.IsExternal(l.URL) {
			hasExternal = true
			break
		}
	}

	return SanitizedMessage{
		SanitizedText:    sanitized,
		Links:            links,
		HasExternalLinks: hasExternal,
	}
}

// Segments splits sanitized text into plain runs interleaved with link
// activation points. Segments cover the text exactly once, with no overlap
// and no gap.
func (p *Pipeline) Segments(sanitized string) []Segment {
	links := p.DetectLinks(sanitized)
	if len(links) == 0 {
		if sanitized == "" {
			return nil
		}
		return []Segment{{Text: sanitized}}
	}

	var segs []Segment
	last := 0
	for _, l := range links {
		if l.Start > last {
			segs = append(segs, Segment{Text: sanitized[last:l.Start]})
		}
		segs = append(segs, Segment{
			Text:     l.Text,
			URL:      l.URL,
			External: p.IsExternal(l.URL),
		})
		last = l.End
	}
	if last < len(sanitized) {
		segs = append(segs, Segment{Text: sanitized[last:]})
	}
	return segs
}
