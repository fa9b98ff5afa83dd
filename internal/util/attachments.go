// Package util contains small helpers shared across the relay packages.
package util

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/llmrelay/core"
)

// ExtractAttachmentText produces a plain-text rendition of a document
// attachment for backends that cannot ingest documents natively. Text-like
// payloads are inlined verbatim; opaque binaries degrade to a placeholder
// marker so the model at least knows a document was present.
func ExtractAttachmentText(att core.Attachment) string {
	if len(att.Data) == 0 {
		return ""
	}
	if isTextMime(att.MimeType) || utf8.Valid(att.Data) {
		return strings.TrimSpace(string(att.Data))
	}
	name := att.Name
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("[attached document %q (%s, %d bytes) could not be converted to text]", name, att.MimeType, len(att.Data))
}

// InlineAttachments appends extracted attachment text to a message body,
// separated by document markers. Messages without attachments pass through
// unchanged.
func InlineAttachments(msg core.Message) string {
	if len(msg.Attachments) == 0 {
		return msg.Content
	}
	var b strings.Builder
	b.WriteString(msg.Content)
	for _, att := range msg.Attachments {
		text := ExtractAttachmentText(att)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		name := att.Name
		if name == "" {
			name = "document"
		}
		fmt.Fprintf(&b, "--- %s ---\n%s", name, text)
	}
	return b.String()
}

func isTextMime(mime string) bool {
	m := strings.ToLower(mime)
	if strings.HasPrefix(m, "text/") {
		return true
	}
	switch m {
	case "application/json", "application/xml", "application/csv", "application/markdown":
		return true
	}
	return false
}
