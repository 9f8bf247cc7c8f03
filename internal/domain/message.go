package domain

import (
	"fmt"
	"strings"
)

// MessageKind is the delivery form of an outbound message.
type MessageKind int

const (
	KindText MessageKind = iota
	KindPost
	KindImage
	KindFile
	KindAudio
	KindVideo
)

var kindNames = map[MessageKind]string{
	KindText:  "text",
	KindPost:  "post",
	KindImage: "image",
	KindFile:  "file",
	KindAudio: "audio",
	KindVideo: "video",
}

func (k MessageKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Label is the capitalized name used in user-facing errors ("Image upload failed").
func (k MessageKind) Label() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// NeedsUpload reports whether the kind carries a local file that must be uploaded first.
func (k MessageKind) NeedsUpload() bool {
	return k == KindImage || k == KindFile || k == KindAudio || k == KindVideo
}

// KindForFileType maps a platform file_type ("image", "opus", "mp4", "stream", "pdf", ...)
// to the message kind that delivers it.
func KindForFileType(fileType string) MessageKind {
	switch fileType {
	case "image":
		return KindImage
	case "opus":
		return KindAudio
	case "mp4":
		return KindVideo
	default:
		return KindFile
	}
}

// OutboundMessage is a logical message before dispatch.
// Text carries the formatted body for KindText, Document the post for KindPost,
// Path and FileType the local media for upload kinds.
type OutboundMessage struct {
	Kind     MessageKind
	Text     string
	Document *MessageDocument
	Path     string
	FileType string
}

func TextMessage(text string) OutboundMessage {
	return OutboundMessage{Kind: KindText, Text: text}
}

func PostMessage(doc MessageDocument) OutboundMessage {
	return OutboundMessage{Kind: KindPost, Document: &doc}
}

// MediaMessage builds an upload-kind message from a local path and platform file_type.
func MediaMessage(path, fileType string) OutboundMessage {
	if fileType == "" {
		fileType = "stream"
	}
	return OutboundMessage{Kind: KindForFileType(fileType), Path: path, FileType: fileType}
}

// SendResult is what the platform returns for a delivered message.
type SendResult struct {
	MessageID  string `json:"message_id"`
	ChatID     string `json:"chat_id,omitempty"`
	MsgType    string `json:"msg_type,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}
