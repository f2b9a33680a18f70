package dropbox

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Well-known failure reasons the pipeline recovers from.
const (
	ReasonConflict          = "conflict"
	ReasonTooManyWriteOps   = "too_many_write_operations"
	ReasonUnknown           = "unknown"
	maxMalformedExcerptSize = 512
)

// Outcome is the classified state of a save job. The concrete variants are
// InProgress, Failed, Complete, and Malformed.
type Outcome interface {
	outcome()
}

// InProgress means the provider is still copying.
type InProgress struct{}

// Failed carries the classified failure reason and the raw failure object.
type Failed struct {
	Reason string
	Detail json.RawMessage
}

// Complete carries the reported final path, which may be empty.
type Complete struct {
	Path string
}

// Malformed wraps a response that matched no known shape.
type Malformed struct {
	Raw string
}

func (InProgress) outcome() {}
func (Failed) outcome()     {}
func (Complete) outcome()   {}
func (Malformed) outcome()  {}

type pathRef struct {
	PathDisplay string `json:"path_display"`
	PathLower   string `json:"path_lower"`
}

type completeRef struct {
	pathRef
	Metadata *pathRef `json:"metadata"`
}

type checkResponse struct {
	Tag      string          `json:".tag"`
	Complete *completeRef    `json:"complete"`
	Metadata *pathRef        `json:"metadata"`
	Failed   json.RawMessage `json:"failed"`
	pathRef
}

// ParseOutcome classifies a check_job_status response body.
func ParseOutcome(body []byte) Outcome {
	var resp checkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Malformed{Raw: excerpt(body)}
	}
	switch strings.TrimSpace(resp.Tag) {
	case "in_progress":
		return InProgress{}
	case "complete":
		return Complete{Path: completePath(resp)}
	case "failed":
		return Failed{Reason: failureReason(resp.Failed), Detail: normalizeDetail(resp.Failed)}
	default:
		return Malformed{Raw: excerpt(body)}
	}
}

func completePath(resp checkResponse) string {
	var candidates []string
	if c := resp.Complete; c != nil {
		if c.Metadata != nil {
			candidates = append(candidates, c.Metadata.PathDisplay)
		}
		candidates = append(candidates, c.PathDisplay)
		if c.Metadata != nil {
			candidates = append(candidates, c.Metadata.PathLower)
		}
		candidates = append(candidates, c.PathLower)
	}
	if resp.Metadata != nil {
		candidates = append(candidates, resp.Metadata.PathDisplay)
	}
	candidates = append(candidates, resp.PathDisplay)
	if resp.Metadata != nil {
		candidates = append(candidates, resp.Metadata.PathLower)
	}
	candidates = append(candidates, resp.PathLower)
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// failureReason resolves reason.tag, then the nested union tag for
// structured errors such as {".tag":"path","path":{".tag":"conflict"}},
// then the failure's own tag.
func failureReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ReasonUnknown
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if trimmed := strings.TrimSpace(asString); trimmed != "" {
			return trimmed
		}
		return ReasonUnknown
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ReasonUnknown
	}
	if reason := unionTag(fields["reason"]); reason != "" {
		return reason
	}
	tag := unionTag(fields[".tag"])
	if tag != "" {
		if nested := unionTag(fields[tag]); nested != "" {
			return nested
		}
		return tag
	}
	return ReasonUnknown
}

// unionTag reads either a bare string or an object's ".tag".
func unionTag(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var tagged struct {
		Tag string `json:".tag"`
	}
	if err := json.Unmarshal(raw, &tagged); err == nil {
		return strings.TrimSpace(tagged.Tag)
	}
	return ""
}

func normalizeDetail(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`null`)
	}
	return append(json.RawMessage(nil), raw...)
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxMalformedExcerptSize {
		return text
	}
	cut := text[:maxMalformedExcerptSize]
	// Back off to a rune boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
