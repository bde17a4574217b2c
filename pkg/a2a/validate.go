package a2a

import (
	"errors"
	"fmt"
)

// AllowedFileMimeTypes is the implementation's allow-list for file part
// MIME types used as receipts/attachments. Empty means "no restriction".
var AllowedFileMimeTypes = map[string]bool{}

// ErrUnsupportedContentType is returned (wrapped) by ValidatePart when a
// file part's MIME type is not in AllowedFileMimeTypes. Callers check for
// it with errors.Is to distinguish a content-type rejection from a
// generic validation failure.
var ErrUnsupportedContentType = errors.New("content type not supported")

// ValidateMessage enforces the invariants of §3: at least one part, text
// parts non-empty, data parts non-empty, file parts satisfy bytes-xor-uri,
// and MIME types (when the allow-list is non-empty) are permitted.
func ValidateMessage(m *Message) error {
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must have at least one part")
	}
	if m.MessageID == "" {
		return fmt.Errorf("message must have a messageId")
	}
	for i, p := range m.Parts {
		if err := ValidatePart(&p); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

// ValidatePart enforces the per-part invariants described in §3 and §8 (P7).
func ValidatePart(p *Part) error {
	switch p.Type {
	case PartTypeText:
		if p.Text == "" {
			return fmt.Errorf("text part must be non-empty")
		}
	case PartTypeData:
		if len(p.Data) == 0 {
			return fmt.Errorf("data part must be a non-empty mapping")
		}
	case PartTypeFile:
		if p.File == nil {
			return fmt.Errorf("file part requires a file object")
		}
		hasBytes := p.File.Bytes != ""
		hasURI := p.File.URI != ""
		if hasBytes == hasURI {
			return fmt.Errorf("file part must set exactly one of bytes or uri")
		}
		if len(AllowedFileMimeTypes) > 0 && p.File.MimeType != "" && !AllowedFileMimeTypes[p.File.MimeType] {
			return fmt.Errorf("%w: %q", ErrUnsupportedContentType, p.File.MimeType)
		}
	default:
		return fmt.Errorf("unknown part kind %q", p.Type)
	}
	return nil
}

// ValidateArtifact enforces the same per-part invariants over an artifact.
func ValidateArtifact(a *Artifact) error {
	if a.ArtifactID == "" {
		return fmt.Errorf("artifact must have an artifactId")
	}
	for i := range a.Parts {
		if err := ValidatePart(&a.Parts[i]); err != nil {
			return fmt.Errorf("artifact part %d: %w", i, err)
		}
	}
	return nil
}

// UniqueHistoryIDs reports whether message ids in a history slice are
// pairwise distinct (P2).
func UniqueHistoryIDs(history []Message) bool {
	seen := make(map[string]bool, len(history))
	for _, m := range history {
		if seen[m.MessageID] {
			return false
		}
		seen[m.MessageID] = true
	}
	return true
}
