package safety_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroya/socket-dm/pkg/safety"
)

func TestSanitizeStripsScript(t *testing.T) {
	p := safety.New("app.example.org")

	got := p.Sanitize(`<script>alert(1)</script>hello`)
	assert.Equal(t, "hello", got)

	got = p.Sanitize(`<img src="x" onerror="alert(1)">hi`)
	assert.Equal(t, "hi", got)
}

func TestSanitizeKeepsInlineEmphasis(t *testing.T) {
	p := safety.New("app.example.org")

	assert.Equal(t, "<b>hi</b>", p.Sanitize("<b>hi</b>"))
	assert.Equal(t, "<em>hi</em> there", p.Sanitize("<em>hi</em> there"))

	// Only the class attribute survives on allowed elements.
	got := p.Sanitize(`<span class="hl" onclick="x()">hi</span>`)
	assert.Equal(t, `<span class="hl">hi</span>`, got)
}

func TestClassify(t *testing.T) {
	p := safety.New("app.example.org")

	tests := []struct {
		url  string
		want safety.LinkClass
	}{
		{"http://localhost:3000/x", safety.ClassInternal},
		{"https://127.0.0.1/admin", safety.ClassInternal},
		{"https://192.168.1.5/", safety.ClassInternal},
		{"http://10.0.0.8/", safety.ClassInternal},
		{"http://172.16.1.1/", safety.ClassInternal},
		{"https://app.example.org/profile", safety.ClassInternal},
		{"/profile", safety.ClassInternal},
		{"not a url at all", safety.ClassInternal},
		{"https://example.com/", safety.ClassExternal},
		{"http://evil.test/phish", safety.ClassExternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(tt.url), "Classify(%q)", tt.url)
	}
}

func TestDetectLinksOffsets(t *testing.T) {
	p := safety.New("app.example.org")

	text := "see https://example.com/a then http://localhost/x done"
	links := p.DetectLinks(text)
	require.Len(t, links, 2)

	prevEnd := 0
	for _, l := range links {
		assert.Equal(t, l.Text, text[l.Start:l.End], "offsets must address the matched text")
		assert.GreaterOrEqual(t, l.Start, prevEnd, "links must be non-overlapping, left to right")
		prevEnd = l.End
	}
	assert.Equal(t, "https://example.com/a", links[0].URL)
	assert.Equal(t, "http://localhost/x", links[1].URL)
}

func TestDetectLinksSchemeless(t *testing.T) {
	p := safety.New("app.example.org")

	links := p.DetectLinks("check example.com please")
	require.Len(t, links, 1)
	assert.Equal(t, "example.com", links[0].Text)
	assert.Equal(t, "http://example.com", links[0].URL)
}

func TestSegmentsReproduceSanitizedText(t *testing.T) {
	p := safety.New("app.example.org")

	tests := []string{
		"no links here",
		"https://example.com/",
		"pre https://example.com/a mid http://localhost/x post",
		"tail link https://example.com/end",
	}

	for _, text := range tests {
		segs := p.Segments(text)

		var sb strings.Builder
		for _, s := range segs {
			sb.WriteString(s.Text)
		}
		assert.Equal(t, text, sb.String(), "segments must concatenate to the input")

		for i := 1; i < len(segs); i++ {
			if !segs[i-1].IsLink() && !segs[i].IsLink() {
				t.Errorf("adjacent plain segments in %q", text)
			}
		}
	}
}

func TestSegmentsClassifyLinks(t *testing.T) {
	p := safety.New("app.example.org")

	segs := p.Segments("a https://example.com/ b http://localhost/ c")
	var links []safety.Segment
	for _, s := range segs {
		if s.IsLink() {
			links = append(links, s)
		}
	}
	require.Len(t, links, 2)
	assert.True(t, links[0].External)
	assert.False(t, links[1].External)
}

func TestSegmentActivateReportsWithoutNavigating(t *testing.T) {
	p := safety.New("app.example.org")

	segs := p.Segments("go to https://example.com/ now")

	var gotURL string
	var gotExternal bool
	calls := 0
	for _, s := range segs {
		s.Activate(func(u string, external bool) {
			gotURL = u
			gotExternal = external
			calls++
		})
	}

	assert.Equal(t, 1, calls, "only link segments activate")
	assert.Equal(t, "https://example.com/", gotURL)
	assert.True(t, gotExternal)
}

func TestValidateOutbound(t *testing.T) {
	p := safety.New("app.example.org")

	v := p.ValidateOutbound("hi")
	assert.True(t, v.OK)
	assert.Equal(t, "hi", v.Sanitized)
	assert.Empty(t, v.Errors)

	v = p.ValidateOutbound("   ")
	assert.False(t, v.OK)
	assert.Len(t, v.Errors, 1)

	v = p.ValidateOutbound(strings.Repeat("a", safety.MaxMessageLen+1))
	assert.False(t, v.OK)
	assert.Len(t, v.Errors, 1)

	// The limit counts characters, not bytes: 600 two-byte runes pass.
	v = p.ValidateOutbound(strings.Repeat("é", 600))
	assert.True(t, v.OK)

	v = p.ValidateOutbound(strings.Repeat("é", safety.MaxMessageLen+1))
	assert.False(t, v.OK)
	assert.Len(t, v.Errors, 1)

	// Length and emptiness are judged on the raw text; the sanitized form
	// comes back regardless so callers can show what would be sent.
	v = p.ValidateOutbound("<script>x</script>")
	assert.True(t, v.OK)
	assert.Equal(t, "", v.Sanitized)
}

func TestSanitizeMessage(t *testing.T) {
	p := safety.New("app.example.org")

	m := p.SanitizeMessage("<b>see</b> https://example.com/")
	assert.Equal(t, "<b>see</b> https://example.com/", m.SanitizedText)
	require.Len(t, m.Links, 1)
	assert.True(t, m.HasExternalLinks)

	m = p.SanitizeMessage("visit http://localhost/x")
	assert.False(t, m.HasExternalLinks)
}
