package linkpreview

import (
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/toeverything/edge-workers/internal/common/htmlprocessor"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

// maxTitleRunes bounds the <title> fallback
const maxTitleRunes = 200

// Metadata is the link preview returned to clients
type Metadata struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	SiteName    string   `json:"siteName,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images"`
	MediaType   string   `json:"mediaType,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	Charset     string   `json:"charset,omitempty"`
	Videos      []string `json:"videos"`
	Favicons    []string `json:"favicons"`
}

func newMetadata(finalURL string) *Metadata {
	return &Metadata{
		URL:      finalURL,
		Images:   []string{},
		Videos:   []string{},
		Favicons: []string{},
	}
}

// extractor folds document events into a Metadata
type extractor struct {
	md      *Metadata
	base    *url.URL
	seen    map[string]struct{}
	inTitle bool
}

// Extract reads an HTML document and collects preview metadata.
// Relative resource URLs are resolved against base; URLs that do not
// canonicalize are dropped and duplicates are kept once per list.
func Extract(r io.Reader, base *url.URL) *Metadata {
	finalURL := ""
	if base != nil {
		finalURL = base.String()
	}
	x := &extractor{
		md:   newMetadata(finalURL),
		base: base,
		seen: make(map[string]struct{}),
	}
	for ev := range htmlprocessor.Events(r) {
		x.handle(ev)
	}
	return x.md
}

func (x *extractor) handle(ev htmlprocessor.Event) {
	switch ev.Kind {
	case htmlprocessor.StartElement:
		x.start(ev)
	case htmlprocessor.EndElement:
		if ev.Tag == "title" {
			x.inTitle = false
		}
	case htmlprocessor.Text:
		if x.inTitle && x.md.Title == "" {
			x.md.Title = truncateRunes(strings.TrimSpace(ev.Text), maxTitleRunes)
		}
	}
}

func (x *extractor) start(ev htmlprocessor.Event) {
	switch ev.Tag {
	case "meta":
		x.meta(ev)
	case "link":
		if rel, _ := ev.Attr("rel"); strings.Contains(strings.ToLower(rel), "icon") {
			href, _ := ev.Attr("href")
			x.appendURL("favicon", &x.md.Favicons, href)
		}
	case "title":
		x.inTitle = true
	case "img":
		src, _ := ev.Attr("src")
		x.appendURL("image", &x.md.Images, src)
	case "video":
		src, _ := ev.Attr("src")
		x.appendURL("video", &x.md.Videos, src)
	}
}

func (x *extractor) meta(ev htmlprocessor.Event) {
	if charset, ok := ev.Attr("charset"); ok && x.md.Charset == "" {
		x.md.Charset = strings.ToLower(strings.TrimSpace(charset))
	}

	property, ok := ev.Attr("property")
	if !ok || property == "" {
		property, _ = ev.Attr("name")
	}
	content, _ := ev.Attr("content")
	if property == "" || content == "" {
		return
	}

	switch strings.ToLower(property) {
	case "og:title":
		x.md.Title = content
	case "og:site_name":
		x.md.SiteName = content
	case "og:description":
		x.md.Description = content
	case "og:image":
		x.appendURL("image", &x.md.Images, content)
	case "og:video":
		x.appendURL("video", &x.md.Videos, content)
	case "og:type":
		x.md.MediaType = content
	case "description":
		if x.md.Description == "" {
			x.md.Description = content
		}
	}
}

// appendURL resolves raw and adds its canonical form to list once
func (x *extractor) appendURL(kind string, list *[]string, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	abs := raw
	if x.base != nil {
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs = x.base.ResolveReference(ref).String()
	}
	canonical := urlutil.CanonicalString(abs)
	if canonical == "" {
		return
	}
	key := kind + " " + canonical
	if _, dup := x.seen[key]; dup {
		return
	}
	x.seen[key] = struct{}{}
	*list = append(*list, canonical)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
