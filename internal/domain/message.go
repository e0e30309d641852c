package domain

// Inbound is a message event delivered by the chat transport.
// GroupID is zero for private (direct) messages.
type Inbound struct {
	MessageID      int64  `json:"message_id"`
	Text           string `json:"text"`
	SenderID       int64  `json:"sender_id"`
	SenderNickname string `json:"sender_nickname"`
	GroupID        int64  `json:"group_id,omitempty"`
}

// IsGroup reports whether the message was posted in a group.
func (m Inbound) IsGroup() bool { return m.GroupID != 0 }

// SegmentType enumerates outbound content elements.
type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentImage SegmentType = "image"
	SegmentReply SegmentType = "reply"
)

// Segment is one element of an outbound message. Only the field matching
// Type is meaningful.
type Segment struct {
	Type SegmentType `json:"type"`
	// Text for SegmentText.
	Text string `json:"text,omitempty"`
	// File is a local path or URL for SegmentImage.
	File string `json:"file,omitempty"`
	// MessageID is the referenced message for SegmentReply.
	MessageID int64 `json:"message_id,omitempty"`
}

// Text returns a text segment.
func Text(s string) Segment { return Segment{Type: SegmentText, Text: s} }

// Image returns an image segment referencing a file path or URL.
func Image(file string) Segment { return Segment{Type: SegmentImage, File: file} }

// Reply returns a reply-reference segment.
func Reply(messageID int64) Segment { return Segment{Type: SegmentReply, MessageID: messageID} }

// Target addresses an outbound message: a group when GroupID is set,
// otherwise the user identified by UserID.
type Target struct {
	GroupID int64 `json:"group_id,omitempty"`
	UserID  int64 `json:"user_id,omitempty"`
}

// Outbound is a composed message ready for the transport.
type Outbound struct {
	Target   Target    `json:"target"`
	Segments []Segment `json:"segments"`
}
