package gcal

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	nsAtom  = "http://www.w3.org/2005/Atom"
	nsGData = "http://schemas.google.com/g/2005"
	nsGCal  = "http://schemas.google.com/gCal/2005"
	nsGAcl  = "http://schemas.google.com/acl/2007"

	kindScheme = "http://schemas.google.com/g/2005#kind"
)

// xmlNode is a schema-less view of one element, used so entity loaders can
// dispatch on element names without a struct per feed flavour.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

type atomFeed struct {
	XMLName xml.Name  `xml:"feed"`
	Entries []xmlNode `xml:"entry"`
}

// attr returns the value of the attribute with the given local name,
// ignoring namespace declarations.
func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) hasAttr(local string) bool {
	for _, a := range n.Attrs {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return true
		}
	}
	return false
}

// child returns the first direct child with the given local name.
func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// elementHandler applies one known element to an entity. Elements without a
// handler are ignored so that new server-side elements do not break loading.
type elementHandler[T any] func(target T, el *xmlNode)

func dispatchElements[T any](target T, entry *xmlNode, handlers map[string]elementHandler[T]) {
	for i := range entry.Children {
		el := &entry.Children[i]
		if handle, ok := handlers[el.XMLName.Local]; ok {
			handle(target, el)
		}
	}
}

func parseFeed(data []byte) ([]xmlNode, error) {
	var feed atomFeed
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: decoding feed: %v", ErrInvalidXML, err)
	}
	return feed.Entries, nil
}

func parseEntry(data []byte) (*xmlNode, error) {
	var entry xmlNode
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("%w: decoding entry: %v", ErrInvalidXML, err)
	}
	if entry.XMLName.Local != "entry" {
		return nil, fmt.Errorf("%w: expected entry, got %s", ErrInvalidXML, entry.XMLName.Local)
	}
	return &entry, nil
}

func parseBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&#39;",
	`"`, "&#34;",
)

// escapeXML escapes text for element content and single-quoted attributes.
// Line breaks are kept, which recurrence text relies on.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
