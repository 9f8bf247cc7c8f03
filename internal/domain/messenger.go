package domain

import "context"

// Directory looks up users, groups and group members on the chat platform.
// Lookups return every match; callers decide how to break ties.
type Directory interface {
	LookupUsers(ctx context.Context, mobiles, emails []string) ([]UserInfo, error)
	GetUser(ctx context.Context, openID string) (*UserProfile, error)
	ListGroups(ctx context.Context) ([]GroupSummary, error)
	LookupGroupIDsByName(ctx context.Context, name string) ([]string, error)
	LookupGroupMembers(ctx context.Context, chatID string) ([]MemberInfo, error)
	LookupMemberIDsByName(ctx context.Context, chatID, name string) ([]string, error)
}

// Sender delivers already-prepared content to a resolved recipient.
type Sender interface {
	SendText(ctx context.Context, to ResolvedRecipient, text string) (*SendResult, error)
	SendPost(ctx context.Context, to ResolvedRecipient, doc MessageDocument) (*SendResult, error)
	SendImage(ctx context.Context, to ResolvedRecipient, imageKey string) (*SendResult, error)
	SendAudio(ctx context.Context, to ResolvedRecipient, fileKey string) (*SendResult, error)
	SendMedia(ctx context.Context, to ResolvedRecipient, fileKey string) (*SendResult, error)
	SendFile(ctx context.Context, to ResolvedRecipient, fileKey string) (*SendResult, error)
	SendInteractive(ctx context.Context, to ResolvedRecipient, card string) (*SendResult, error)
	SendSharedChat(ctx context.Context, to ResolvedRecipient, chatID string) (*SendResult, error)
	SendSharedUser(ctx context.Context, to ResolvedRecipient, userID string) (*SendResult, error)
}

// Uploader moves media between the local filesystem and the platform.
// An upload that yields an empty key is treated as failed by callers.
type Uploader interface {
	UploadImage(ctx context.Context, path string) (string, error)
	UploadFile(ctx context.Context, path, fileType string) (string, error)
	DownloadImage(ctx context.Context, imageKey, dest string) error
	DownloadFile(ctx context.Context, fileKey, dest string) error
}

// Messenger is the complete chat platform client.
type Messenger interface {
	Directory
	Sender
	Uploader
}
