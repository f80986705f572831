package tamtam

import (
	"encoding/json"
)

// UpdateType represents the type of an incoming update.
type UpdateType string

const (
	UpdateTypeBotStarted     UpdateType = "bot_started"
	UpdateTypeMessageCreated UpdateType = "message_created"
)

// TextFormat selects how message text is rendered.
type TextFormat string

const (
	TextFormatMarkdown TextFormat = "markdown"
	TextFormatHTML     TextFormat = "html"
)

// AttachmentType represents the type of an attachment.
type AttachmentType string

const (
	AttachmentTypeFile  AttachmentType = "file"
	AttachmentTypeImage AttachmentType = "image"
)

// UploadType is the type of a file being uploaded.
type UploadType string

const (
	UploadTypeFile  UploadType = "file"
	UploadTypeImage UploadType = "image"
)

// User represents a TamTam user.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	UserID   int64  `json:"user_id"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// MessageBody is the content of a received message.
type MessageBody struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
	Seq  int64  `json:"seq"`
}

// Message represents a received message.
type Message struct {
	Sender    *User        `json:"sender,omitempty"`
	Body      *MessageBody `json:"body,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Update is the envelope for webhook and long polling updates. Fields not
// relevant to the update type are left empty.
type Update struct {
	Message    *Message   `json:"message,omitempty"`
	User       *User      `json:"user,omitempty"`
	UpdateType UpdateType `json:"update_type"`
	Timestamp  int64      `json:"timestamp"`
	ChatID     int64      `json:"chat_id,omitempty"`
}

// UpdateList is returned by GET /updates.
type UpdateList struct {
	Marker  *int64            `json:"marker"`
	Updates []json.RawMessage `json:"updates"`
}

// AttachmentPayload references an uploaded file by its token.
type AttachmentPayload struct {
	Token string `json:"token"`
}

// AttachmentRequest is an attachment sent with a new message.
type AttachmentRequest struct {
	Payload AttachmentPayload `json:"payload"`
	Type    AttachmentType    `json:"type"`
}

// NewFileAttachment creates a file attachment from an upload token.
func NewFileAttachment(token string) AttachmentRequest {
	return AttachmentRequest{
		Type:    AttachmentTypeFile,
		Payload: AttachmentPayload{Token: token},
	}
}

// NewMessageBody is the body of an outgoing message.
type NewMessageBody struct {
	Text        string              `json:"text"`
	Format      TextFormat          `json:"format,omitempty"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

// SendOptions are query parameters of POST /messages.
type SendOptions struct {
	DisableLinkPreview bool
}

// UploadEndpoint is returned by POST /uploads.
type UploadEndpoint struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// UploadedInfo is returned by the upload URL once a file has been received.
type UploadedInfo struct {
	Token  string `json:"token"`
	FileID int64  `json:"fileId"`
}

// SimpleQueryResult is returned by subscription endpoints.
type SimpleQueryResult struct {
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// SubscriptionRequest registers a webhook.
type SubscriptionRequest struct {
	URL         string       `json:"url"`
	UpdateTypes []UpdateType `json:"update_types,omitempty"`
}

// BotInfo is returned by GET /me.
type BotInfo struct {
	User
	Description string `json:"description,omitempty"`
}
