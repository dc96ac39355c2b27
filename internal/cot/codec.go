package cot

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Decode parses a single CoT event document.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := xml.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("cot: decode event: %w", err)
	}
	return &ev, nil
}

// Encode serializes an event to its wire form.
func Encode(ev *Event) ([]byte, error) {
	if ev.Version == "" {
		ev.Version = "2.0"
	}
	data, err := xml.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("cot: encode event: %w", err)
	}
	return data, nil
}

// Stream reads consecutive CoT events off r. TAK peers send events
// back to back with no framing beyond the XML itself, so the reader
// walks tokens and decodes each <event> element as it appears.
type Stream struct {
	dec *xml.Decoder
}

// NewStream wraps a reader in an event stream.
func NewStream(r io.Reader) *Stream {
	return &Stream{dec: xml.NewDecoder(r)}
}

// Next returns the next event, io.EOF at end of stream, or a decode
// error. Non-event top-level elements (e.g. server banners) are
// skipped.
func (s *Stream) Next() (*Event, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "event" {
			if err := s.dec.Skip(); err != nil {
				return nil, fmt.Errorf("cot: skip %s: %w", start.Name.Local, err)
			}
			continue
		}
		var ev Event
		if err := s.dec.DecodeElement(&ev, &start); err != nil {
			return nil, fmt.Errorf("cot: decode event: %w", err)
		}
		return &ev, nil
	}
}
