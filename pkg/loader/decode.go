package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// ErrInvalidResource is returned for input that is not a loadable FHIR
// resource.
var ErrInvalidResource = errors.New("invalid FHIR resource")

var (
	resourceTypePattern = regexp.MustCompile(`^[A-Z][A-Za-z]{0,63}$`)
	idPattern           = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)
)

// Resource is one decoded FHIR resource.
type Resource struct {
	Type string
	ID   string
	// JSON is the compacted resource document.
	JSON []byte
	// GeneratedID is set when ID was assigned by the loader.
	GeneratedID bool
}

type header struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// Decoder reads resources from a stream. The stream may hold any sequence
// of JSON values: newline-delimited resources, a single resource, a JSON
// array of resources, or Bundles. Bundles are replaced by the resources of
// their entries.
type Decoder struct {
	dec     *json.Decoder
	pending []json.RawMessage
	newID   func() string
	seq     int
}

// NewDecoder returns a Decoder reading from r. When newID is non-nil it
// assigns identifiers to resources that lack one; otherwise such resources
// are rejected.
func NewDecoder(r io.Reader, newID func() string) *Decoder {
	return &Decoder{dec: json.NewDecoder(r), newID: newID}
}

// Next returns the next resource, or io.EOF when the stream is exhausted.
func (d *Decoder) Next() (Resource, error) {
	for {
		raw, err := d.nextValue()
		if err != nil {
			return Resource{}, err
		}
		d.seq++

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return Resource{}, fmt.Errorf("value %d: %w: %v", d.seq, ErrInvalidResource, err)
			}
			d.pending = append(items, d.pending...)
			continue
		}
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return Resource{}, fmt.Errorf("value %d: %w: expected a JSON object", d.seq, ErrInvalidResource)
		}

		var h header
		if err := json.Unmarshal(trimmed, &h); err != nil {
			return Resource{}, fmt.Errorf("value %d: %w: %v", d.seq, ErrInvalidResource, err)
		}
		if h.ResourceType == "Bundle" {
			entries := make([]json.RawMessage, 0, len(h.Entry))
			for _, e := range h.Entry {
				if len(e.Resource) > 0 && string(e.Resource) != "null" {
					entries = append(entries, e.Resource)
				}
			}
			d.pending = append(entries, d.pending...)
			continue
		}
		return d.resource(h, trimmed)
	}
}

func (d *Decoder) nextValue() (json.RawMessage, error) {
	if len(d.pending) > 0 {
		raw := d.pending[0]
		d.pending = d.pending[1:]
		return raw, nil
	}
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("value %d: %w: %v", d.seq+1, ErrInvalidResource, err)
	}
	return raw, nil
}

func (d *Decoder) resource(h header, doc []byte) (Resource, error) {
	if h.ResourceType == "" {
		return Resource{}, fmt.Errorf("value %d: %w: missing resourceType", d.seq, ErrInvalidResource)
	}
	if !resourceTypePattern.MatchString(h.ResourceType) {
		return Resource{}, fmt.Errorf("value %d: %w: bad resourceType %q", d.seq, ErrInvalidResource, h.ResourceType)
	}

	res := Resource{Type: h.ResourceType, ID: h.ID}
	if res.ID == "" {
		if d.newID == nil {
			return Resource{}, fmt.Errorf("value %d (%s): %w: missing id", d.seq, h.ResourceType, ErrInvalidResource)
		}
		res.ID = d.newID()
		res.GeneratedID = true
		doc = withID(doc, res.ID)
	}
	if !idPattern.MatchString(res.ID) {
		return Resource{}, fmt.Errorf("value %d (%s): %w: bad id %q", d.seq, h.ResourceType, ErrInvalidResource, res.ID)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return Resource{}, fmt.Errorf("value %d: %w: %v", d.seq, ErrInvalidResource, err)
	}
	res.JSON = buf.Bytes()
	return res, nil
}

// withID inserts an "id" member at the front of a JSON object that holds
// at least one other member.
func withID(doc []byte, id string) []byte {
	quoted, _ := json.Marshal(id)
	out := make([]byte, 0, len(doc)+len(quoted)+7)
	out = append(out, `{"id":`...)
	out = append(out, quoted...)
	out = append(out, ',')
	return append(out, doc[1:]...)
}
