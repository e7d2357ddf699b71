// Package htmlprocessor turns an HTML byte stream into a flat sequence of
// element and text events. It does not build a DOM: callers fold the events
// into whatever they need.
package htmlprocessor

import (
	"io"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// EventKind tags an Event
type EventKind int

const (
	// StartElement is an opening or self-closing tag
	StartElement EventKind = iota
	EndElement
	Text
)

// Event is one token of the document. Tag names and attribute keys are lowercase.
type Event struct {
	Kind  EventKind
	Tag   string
	Attrs map[string]string
	Text  string
}

// Attr returns the attribute value and whether it was present
func (e Event) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Events reads r lazily. The sequence ends at EOF or on the first read or
// parse error, and can only be consumed once since it drains r.
func Events(r io.Reader) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		z := html.NewTokenizer(r)
		for {
			switch z.Next() {
			case html.ErrorToken:
				return
			case html.StartTagToken, html.SelfClosingTagToken:
				name, hasAttr := z.TagName()
				ev := Event{Kind: StartElement, Tag: string(name)}
				if hasAttr {
					ev.Attrs = readAttrs(z)
				}
				if !yield(ev) {
					return
				}
			case html.EndTagToken:
				name, _ := z.TagName()
				if !yield(Event{Kind: EndElement, Tag: string(name)}) {
					return
				}
			case html.TextToken:
				if !yield(Event{Kind: Text, Text: string(z.Text())}) {
					return
				}
			}
		}
	}
}

// readAttrs keeps the first occurrence of each attribute, as browsers do
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		k := strings.ToLower(string(key))
		if _, dup := attrs[k]; !dup {
			attrs[k] = string(val)
		}
		if !more {
			return attrs
		}
	}
}
