package importer

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParsedMail is the structured form of one announcement message. Parsing
// is pure (bytes in, record out) so it stays testable without network
// access.
type ParsedMail struct {
	MessageID string
	Subject   string
	Sender    string
	Date      time.Time
	Content   string
	Raw       string
}

// LooksLikeEmail reports whether a fetched body plausibly is an RFC-822
// message rather than an HTML page or other asset.
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "Message-ID:") ||
		strings.Contains(s, "From:") ||
		strings.Contains(s, "Subject:")
}

// ParseAnnouncementMail parses a raw message. The message id falls back to
// a URL-derived identity when the header is missing, the date falls back
// to now, and an empty extracted body falls back to the raw transport text
// so CVE extraction always has something to scan.
func ParseAnnouncementMail(raw, sourceURL string, now time.Time) (ParsedMail, error) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return ParsedMail{}, fmt.Errorf("could not parse email: %w", err)
	}

	messageID := strings.Trim(msg.Header.Get("Message-ID"), "<> \t")
	if messageID == "" {
		messageID = SynthesizeMessageID(sourceURL)
	}

	date := now
	if dateHeader := msg.Header.Get("Date"); dateHeader != "" {
		if parsed, err := mail.ParseDate(dateHeader); err == nil {
			date = parsed
		} else if parsed, err := dateparse.ParseAny(dateHeader); err == nil {
			date = parsed
		}
	}

	content := extractTextContent(msg)
	if strings.TrimSpace(content) == "" {
		content = raw
	}

	return ParsedMail{
		MessageID: messageID,
		Subject:   msg.Header.Get("Subject"),
		Sender:    msg.Header.Get("From"),
		Date:      date,
		Content:   content,
		Raw:       raw,
	}, nil
}

// SynthesizeMessageID derives a stable identity for messages without a
// Message-ID header: the archive's query timestamp, else the path tail,
// else a hash of the whole URL.
func SynthesizeMessageID(sourceURL string) string {
	if parsed, err := url.Parse(sourceURL); err == nil {
		if t := parsed.Query().Get("t"); t != "" {
			return t
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if tail := segments[len(segments)-1]; tail != "" {
			return tail
		}
	}

	h := fnv.New64a()
	h.Write([]byte(sourceURL))
	return fmt.Sprintf("url_%x", h.Sum64())
}

// extractTextContent prefers text/plain parts of a multipart body,
// concatenated in order; otherwise the whole payload decoded permissively.
func extractTextContent(msg *mail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		var content strings.Builder
		reader := multipart.NewReader(msg.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if partType != "text/plain" {
				continue
			}
			content.WriteString(decodeBody(part, part.Header.Get("Content-Transfer-Encoding")))
		}
		return content.String()
	}

	return decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
}

// decodeBody undoes the transfer encoding, replacing invalid bytes rather
// than failing.
func decodeBody(r io.Reader, transferEncoding string) string {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	data, _ := io.ReadAll(r)
	return strings.ToValidUTF8(string(data), "�")
}
