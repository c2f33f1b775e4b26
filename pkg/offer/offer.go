// Package offer defines the event and place documents that are imported into
// and returned from the search engine.
package offer

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Type is the kind of an offer.
type Type string

const (
	Event Type = "event"
	Place Type = "place"
)

// Types lists every offer type in import order.
var Types = []Type{Event, Place}

var (
	// ErrInvalidType is returned when a string does not name an offer type.
	ErrInvalidType = errors.New("invalid offer type")

	// ErrMissingID is returned when a document has no usable canonical URI.
	ErrMissingID = errors.New("document has no canonical id")
)

// ParseType parses "event" or "place".
func ParseType(s string) (Type, error) {
	switch Type(strings.TrimSpace(s)) {
	case Event:
		return Event, nil
	case Place:
		return Place, nil
	default:
		return "", fmt.Errorf("%w: %q (use %q or %q)", ErrInvalidType, s, Event, Place)
	}
}

func (t Type) String() string {
	return string(t)
}

// Offer is an event or place document. Known fields are typed; everything else
// the source sent is kept in Extra and written back unmodified.
type Offer struct {
	// ID is the final path segment of URI and is the engine document id.
	ID string `mapstructure:"-"`

	// URI is the canonical "@id" of the document at the source.
	URI string `mapstructure:"@id"`

	// Type is not part of the source body. It is set from the listing the
	// offer was imported from, or from an injected "type" field.
	Type Type `mapstructure:"-"`

	// Name maps a language code to the localized name. It is read from the
	// "name" field, which itself stays in Extra as the source sent it.
	Name map[string]string `mapstructure:"-"`

	Extra map[string]any `mapstructure:",remain"`
}

// FromDocument decodes a raw JSON document into an Offer.
func FromDocument(doc map[string]any) (*Offer, error) {
	var o Offer

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &o,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("error creating decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("error decoding offer: %w", err)
	}

	id, err := IDFromURI(o.URI)
	if err != nil {
		return nil, err
	}
	o.ID = id

	o.Name = decodeName(o.Extra["name"])

	if raw, ok := o.Extra["type"].(string); ok {
		if t, err := ParseType(raw); err == nil {
			o.Type = t
		}
	}

	return &o, nil
}

// decodeName reads the string translations of a "name" value. Anything that is
// not a map of strings contributes nothing.
func decodeName(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	name := make(map[string]string, len(m))
	for lang, v := range m {
		if s, ok := v.(string); ok {
			name[lang] = s
		}
	}
	return name
}

// Document re-assembles the raw body of the offer. The result is a fresh map;
// nested values are shared with Extra. Name is only written when Extra has no
// "name" of its own.
func (o *Offer) Document() map[string]any {
	doc := make(map[string]any, len(o.Extra)+2)
	for k, v := range o.Extra {
		doc[k] = v
	}
	if o.URI != "" {
		doc["@id"] = o.URI
	}
	if _, ok := doc["name"]; !ok && o.Name != nil {
		doc["name"] = o.Name
	}
	return doc
}

// DisplayName returns the Dutch name, the first other name, or "[no title]".
func (o *Offer) DisplayName() string {
	if name, ok := o.Name["nl"]; ok && name != "" {
		return name
	}
	for _, lang := range []string{"en", "fr", "de"} {
		if name := o.Name[lang]; name != "" {
			return name
		}
	}
	return "[no title]"
}

// IDFromURI returns the last path segment of a canonical URI.
func IDFromURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", ErrMissingID
	}

	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}

	id := path.Base(strings.TrimRight(p, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("%w: %q", ErrMissingID, uri)
	}
	return id, nil
}
