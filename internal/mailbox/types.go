// Package mailbox wraps the Gmail API behind the narrow surface the
// extraction pipeline needs: search candidates, look one message up by
// id, and fetch a message body.
package mailbox

import "time"

// MessageRef identifies one mailbox message plus the metadata used for
// selection. Produced by Search/Lookup; immutable afterwards.
type MessageRef struct {
	ID         string
	Subject    string
	Sender     string // raw From header, e.g. `이도한 <dohan@example.com>`
	ReceivedAt time.Time
}

// RawContent is a fetched message body plus its originating reference.
type RawContent struct {
	Ref  MessageRef
	HTML string
	Text string
}

// Empty reports whether the message carries no renderable content.
func (c RawContent) Empty() bool {
	return c.HTML == "" && c.Text == ""
}
