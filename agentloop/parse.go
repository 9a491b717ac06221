package agentloop

import (
	"errors"
	"strings"
)

// Parser turns raw model output into exactly one Action. Parsing is
// deterministic and side-effect free: identical input always yields an
// identical Action or an identical error.
type Parser struct {
	codec Codec
}

// NewParser creates a Parser for the given codec. A nil codec selects the
// canonical JSON envelope codec.
func NewParser(codec Codec) *Parser {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Parser{codec: codec}
}

// Parse decodes raw text. When the configured codec finds no envelope at
// all, the fixed normalization rules reconstruct a canonical JSON envelope
// and the result is re-parsed. An envelope that is present but malformed is
// a *ParseError immediately; heuristics never second-guess it.
func (p *Parser) Parse(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Action{}, NewParseError("empty response")
	}

	action, err := p.codec.Decode(trimmed)
	if err == nil {
		return action, nil
	}
	if !errors.Is(err, errNoEnvelope) {
		return Action{}, err
	}

	// Fall back to the JSON codec for text the configured codec does not
	// recognize: a model speaking the canonical format is always accepted.
	if p.codec.Name() != "json" {
		action, err = (JSONCodec{}).Decode(trimmed)
		if err == nil {
			return action, nil
		}
		if !errors.Is(err, errNoEnvelope) {
			return Action{}, err
		}
	}

	canonical, ok := NormalizeEnvelope(trimmed)
	if !ok {
		return Action{}, NewParseError("no recognizable envelope")
	}
	action, err = (JSONCodec{}).Decode(canonical)
	if err != nil {
		if errors.Is(err, errNoEnvelope) {
			return Action{}, NewParseError("no recognizable envelope")
		}
		return Action{}, err
	}
	return action, nil
}
