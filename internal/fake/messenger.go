// Package fake provides in-memory collaborators for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"larkmcp/internal/domain"
)

// Send is one recorded outbound call.
type Send struct {
	Method  string
	To      domain.ResolvedRecipient
	Payload string
	Doc     *domain.MessageDocument
}

// Messenger is a scripted chat platform. Zero value is an empty directory whose
// uploads fail with an empty key.
type Messenger struct {
	mu sync.Mutex

	Users    []domain.UserInfo
	Profiles map[string]domain.UserProfile
	Groups   []domain.GroupSummary
	Members  map[string][]domain.MemberInfo

	ImageKey  string
	FileKey   string
	UploadErr error
	SendErr   error
	LookupErr error

	Sends   []Send
	Uploads []string
	Lookups int
}

var _ domain.Messenger = (*Messenger)(nil)

// Calls returns a copy of the recorded sends.
func (m *Messenger) Calls() []Send {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Sends)
}

func (m *Messenger) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sends)
}

func (m *Messenger) LookupUsers(_ context.Context, mobiles, emails []string) ([]domain.UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	var out []domain.UserInfo
	for _, u := range m.Users {
		if (u.Mobile != "" && slices.Contains(mobiles, u.Mobile)) || (u.Email != "" && slices.Contains(emails, u.Email)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Messenger) GetUser(_ context.Context, openID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Profiles[openID]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("user %s: %w", openID, domain.ErrRecipientNotFound)
}

func (m *Messenger) ListGroups(context.Context) ([]domain.GroupSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	return slices.Clone(m.Groups), nil
}

func (m *Messenger) LookupGroupIDsByName(_ context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	var ids []string
	for _, g := range m.Groups {
		if g.Name == name {
			ids = append(ids, g.ChatID)
		}
	}
	return ids, nil
}

func (m *Messenger) LookupGroupMembers(_ context.Context, chatID string) ([]domain.MemberInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	return slices.Clone(m.Members[chatID]), nil
}

func (m *Messenger) LookupMemberIDsByName(_ context.Context, chatID, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	var ids []string
	for _, mem := range m.Members[chatID] {
		if mem.Name == name {
			ids = append(ids, mem.OpenID)
		}
	}
	return ids, nil
}

func (m *Messenger) record(method string, to domain.ResolvedRecipient, payload string, doc *domain.MessageDocument) (*domain.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.Sends = append(m.Sends, Send{Method: method, To: to, Payload: payload, Doc: doc})
	return &domain.SendResult{
		MessageID: fmt.Sprintf("om_%d", len(m.Sends)),
		ChatID:    to.ID,
		MsgType:   method,
	}, nil
}

func (m *Messenger) SendText(_ context.Context, to domain.ResolvedRecipient, text string) (*domain.SendResult, error) {
	return m.record("text", to, text, nil)
}

func (m *Messenger) SendPost(_ context.Context, to domain.ResolvedRecipient, doc domain.MessageDocument) (*domain.SendResult, error) {
	return m.record("post", to, doc.Title, &doc)
}

func (m *Messenger) SendImage(_ context.Context, to domain.ResolvedRecipient, imageKey string) (*domain.SendResult, error) {
	return m.record("image", to, imageKey, nil)
}

func (m *Messenger) SendAudio(_ context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return m.record("audio", to, fileKey, nil)
}

func (m *Messenger) SendMedia(_ context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return m.record("media", to, fileKey, nil)
}

func (m *Messenger) SendFile(_ context.Context, to domain.ResolvedRecipient, fileKey string) (*domain.SendResult, error) {
	return m.record("file", to, fileKey, nil)
}

func (m *Messenger) SendInteractive(_ context.Context, to domain.ResolvedRecipient, card string) (*domain.SendResult, error) {
	return m.record("interactive", to, card, nil)
}

func (m *Messenger) SendSharedChat(_ context.Context, to domain.ResolvedRecipient, chatID string) (*domain.SendResult, error) {
	return m.record("share_chat", to, chatID, nil)
}

func (m *Messenger) SendSharedUser(_ context.Context, to domain.ResolvedRecipient, userID string) (*domain.SendResult, error) {
	return m.record("share_user", to, userID, nil)
}

func (m *Messenger) UploadImage(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, "image:"+path)
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	return m.ImageKey, nil
}

func (m *Messenger) UploadFile(_ context.Context, path, fileType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, fileType+":"+path)
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	return m.FileKey, nil
}

func (m *Messenger) DownloadImage(_ context.Context, imageKey, dest string) error {
	if imageKey == "" {
		return errors.New("empty image key")
	}
	return os.WriteFile(dest, []byte("image:"+imageKey), 0o644)
}

func (m *Messenger) DownloadFile(_ context.Context, fileKey, dest string) error {
	if fileKey == "" {
		return errors.New("empty file key")
	}
	return os.WriteFile(dest, []byte("file:"+fileKey), 0o644)
}

// Engineering returns a directory with one group "Engineering" (chat c1) holding Bob (o42)
// and Alice (o7), and one user reachable by mobile or email.
func Engineering() *Messenger {
	return &Messenger{
		Users: []domain.UserInfo{
			{OpenID: "ou_carol", Mobile: "+15550100", Email: "carol@example.com"},
		},
		Profiles: map[string]domain.UserProfile{
			"ou_carol": {OpenID: "ou_carol", Name: "Carol", Email: "carol@example.com"},
		},
		Groups: []domain.GroupSummary{{ChatID: "c1", Name: "Engineering"}},
		Members: map[string][]domain.MemberInfo{
			"c1": {{Name: "Bob", OpenID: "o42"}, {Name: "Alice", OpenID: "o7"}},
		},
		ImageKey: "img_1",
		FileKey:  "file_1",
	}
}
