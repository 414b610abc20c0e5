package gmail

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	emaildomain "email-analyzer-backend/internal/email/domain"

	"github.com/jaytaylor/html2text"
	"google.golang.org/api/gmail/v1"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	invisiblePattern  = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	base64Whitespaces = strings.NewReplacer("\r", "", "\n", "", " ", "", "\t", "")
)

// ExtractBody picks the most readable text from a message payload.
// The first text/plain part wins, then the first text/html part (stripped of markup),
// then the payload's own data. Parts are visited depth first in document order.
func ExtractBody(payload *gmail.MessagePart) (string, emaildomain.BodyKind) {
	if payload == nil {
		return "", emaildomain.BodyKindPlain
	}

	if part := findPart(payload, "text/plain"); part != nil {
		return decodeData(part.Body.Data), emaildomain.BodyKindPlain
	}

	if part := findPart(payload, "text/html"); part != nil {
		return StripMarkup(decodeData(part.Body.Data)), emaildomain.BodyKindMarkup
	}

	if payload.Body != nil && payload.Body.Data != "" {
		text := decodeData(payload.Body.Data)
		if strings.HasPrefix(strings.ToLower(payload.MimeType), "text/html") {
			return StripMarkup(text), emaildomain.BodyKindMarkup
		}
		return text, emaildomain.BodyKindPlain
	}

	return "", emaildomain.BodyKindPlain
}

// findPart returns the first node in pre-order whose MIME type matches and that carries inline data.
func findPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	if part == nil {
		return nil
	}
	if strings.EqualFold(baseMimeType(part.MimeType), mimeType) && part.Body != nil && part.Body.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

func baseMimeType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType)
}

// decodeData decodes the provider's URL-safe base64 by mapping it onto the standard alphabet.
// Padding is optional. Undecodable data yields an empty string.
func decodeData(data string) string {
	s := base64Whitespaces.Replace(data)
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	s = strings.TrimRight(s, "=")

	decoded, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// StripMarkup converts HTML to plain text.
func StripMarkup(markup string) string {
	text, err := html2text.FromString(markup, html2text.Options{OmitLinks: true, TextOnly: true})
	if err == nil {
		return strings.TrimSpace(text)
	}

	text = invisiblePattern.ReplaceAllString(markup, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
