package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
)

const gmailUser = "me"

// Client is the mailbox query surface the orchestrator depends on.
type Client interface {
	// Search lists candidate messages matching a Gmail query, bounded
	// by max, newest first.
	Search(ctx context.Context, query string, max int64) ([]MessageRef, error)
	// Lookup fetches one message's metadata directly by id, bypassing
	// search.
	Lookup(ctx context.Context, id string) (MessageRef, error)
	// FetchBody retrieves the full message content.
	FetchBody(ctx context.Context, id string) (RawContent, error)
}

// GmailClient implements Client against the Gmail REST API.
type GmailClient struct {
	srv *gmail.Service
	log *logrus.Logger
}

func NewGmailClient(srv *gmail.Service, log *logrus.Logger) *GmailClient {
	return &GmailClient{srv: srv, log: log}
}

// SenderQuery builds the Gmail search query for a sender filter.
func SenderQuery(sender string) string {
	return fmt.Sprintf("from:%q", sender)
}

func (c *GmailClient) Search(ctx context.Context, query string, max int64) ([]MessageRef, error) {
	list, err := c.srv.Users.Messages.List(gmailUser).
		Q(query).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages for %q: %w", query, err)
	}

	refs := make([]MessageRef, 0, len(list.Messages))
	for _, m := range list.Messages {
		ref, err := c.Lookup(ctx, m.Id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	c.log.WithFields(logrus.Fields{"query": query, "candidates": len(refs)}).Debug("mailbox search complete")
	return refs, nil
}

func (c *GmailClient) Lookup(ctx context.Context, id string) (MessageRef, error) {
	msg, err := c.srv.Users.Messages.Get(gmailUser, id).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Date").
		Context(ctx).
		Do()
	if err != nil {
		return MessageRef{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return refFromMessage(msg), nil
}

func (c *GmailClient) FetchBody(ctx context.Context, id string) (RawContent, error) {
	msg, err := c.srv.Users.Messages.Get(gmailUser, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return RawContent{}, fmt.Errorf("get message body %s: %w", id, err)
	}

	content := RawContent{Ref: refFromMessage(msg)}
	if msg.Payload != nil {
		content.HTML = extractPart(msg.Payload, "text/html")
		content.Text = extractPart(msg.Payload, "text/plain")
	}
	return content, nil
}

func refFromMessage(msg *gmail.Message) MessageRef {
	ref := MessageRef{ID: msg.Id}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				ref.Subject = h.Value
			case "From":
				ref.Sender = h.Value
			case "Date":
				ref.ReceivedAt = parseHeaderDate(h.Value)
			}
		}
	}
	if ref.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		ref.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	return ref
}

// headerDateFormats covers the RFC 5322 variants seen in the wild.
var headerDateFormats = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	time.RFC822,
}

func parseHeaderDate(value string) time.Time {
	for _, layout := range headerDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	// Strip a trailing "(KST)"-style comment and retry once.
	if open := strings.LastIndex(value, " ("); open != -1 {
		if t := parseHeaderDate(strings.TrimSpace(value[:open])); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// extractPart walks the multipart tree depth-first and returns the
// first body of the requested MIME type, decoded from base64url.
func extractPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := extractPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data, with or without
// padding.
func decodeBody(data string) string {
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
