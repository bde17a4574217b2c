package a2a

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePart_FileBytesXorURI(t *testing.T) {
	neither := &Part{Type: PartTypeFile, File: &FilePart{}}
	require.Error(t, ValidatePart(neither))

	both := &Part{Type: PartTypeFile, File: &FilePart{Bytes: "aGk=", URI: "https://example.com/f"}}
	require.Error(t, ValidatePart(both))

	bytesOnly := &Part{Type: PartTypeFile, File: &FilePart{Bytes: "aGk="}}
	assert.NoError(t, ValidatePart(bytesOnly))

	uriOnly := &Part{Type: PartTypeFile, File: &FilePart{URI: "https://example.com/f"}}
	assert.NoError(t, ValidatePart(uriOnly))
}

func TestValidatePart_TextAndData(t *testing.T) {
	assert.Error(t, ValidatePart(&Part{Type: PartTypeText, Text: ""}))
	assert.NoError(t, ValidatePart(&Part{Type: PartTypeText, Text: "hi"}))

	assert.Error(t, ValidatePart(&Part{Type: PartTypeData, Data: map[string]any{}}))
	assert.NoError(t, ValidatePart(&Part{Type: PartTypeData, Data: map[string]any{"k": "v"}}))
}

func TestValidateMessage_RequiresParts(t *testing.T) {
	err := ValidateMessage(&Message{MessageID: "m1"})
	require.Error(t, err)
}

func TestValidatePart_RejectsDisallowedMimeType(t *testing.T) {
	AllowedFileMimeTypes = map[string]bool{"application/pdf": true}
	defer func() { AllowedFileMimeTypes = map[string]bool{} }()

	part := &Part{Type: PartTypeFile, File: &FilePart{Bytes: "aGk=", MimeType: "application/exe"}}
	err := ValidatePart(part)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedContentType))

	allowed := &Part{Type: PartTypeFile, File: &FilePart{Bytes: "aGk=", MimeType: "application/pdf"}}
	assert.NoError(t, ValidatePart(allowed))
}

func TestUniqueHistoryIDs(t *testing.T) {
	unique := []Message{{MessageID: "m1"}, {MessageID: "m2"}}
	assert.True(t, UniqueHistoryIDs(unique))

	dup := []Message{{MessageID: "m1"}, {MessageID: "m1"}}
	assert.False(t, UniqueHistoryIDs(dup))
}
