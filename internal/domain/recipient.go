package domain

// RecipientSpec is the caller's human-friendly description of who should receive a message.
// A user selector (Mobile or Email) takes priority over the group selector. MemberName
// narrows a group selector to one of its members, addressed directly.
type RecipientSpec struct {
	Mobile     string
	Email      string
	GroupName  string
	MemberName string
}

// HasUser reports whether a user selector is present.
func (s RecipientSpec) HasUser() bool { return s.Mobile != "" || s.Email != "" }

// HasGroup reports whether a group selector is present.
func (s RecipientSpec) HasGroup() bool { return s.GroupName != "" }

// IsEmpty reports whether no selector was given at all.
func (s RecipientSpec) IsEmpty() bool { return !s.HasUser() && !s.HasGroup() }

type RecipientKind int

const (
	RecipientUser RecipientKind = iota
	RecipientGroup
)

func (k RecipientKind) String() string {
	if k == RecipientGroup {
		return "group"
	}
	return "user"
}

// ReceiveIDType is the platform id type used when addressing this kind of recipient.
func (k RecipientKind) ReceiveIDType() string {
	if k == RecipientGroup {
		return "chat_id"
	}
	return "open_id"
}

// ResolvedRecipient is a platform address: an open id for users, a chat id for groups.
type ResolvedRecipient struct {
	Kind RecipientKind
	ID   string
}

func UserRecipient(openID string) ResolvedRecipient {
	return ResolvedRecipient{Kind: RecipientUser, ID: openID}
}

func GroupRecipient(chatID string) ResolvedRecipient {
	return ResolvedRecipient{Kind: RecipientGroup, ID: chatID}
}

// UserInfo is one batch lookup hit.
type UserInfo struct {
	OpenID string `json:"user_id"`
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`
}

// UserProfile is the detailed contact record of a single user.
type UserProfile struct {
	OpenID string `json:"open_id"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	EnName string `json:"en_name,omitempty"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

type GroupSummary struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
}

type MemberInfo struct {
	Name   string `json:"name"`
	OpenID string `json:"open_id"`
}

// GroupInfo is a resolved group together with its member list at lookup time.
type GroupInfo struct {
	ChatID  string       `json:"chat_id"`
	Name    string       `json:"name"`
	Members []MemberInfo `json:"members"`
}
