// Package resolver turns phone numbers, emails, group names and member names into platform ids.
// Nothing is cached: every call goes to the directory.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"larkmcp/internal/domain"
)

type Resolver struct {
	dir    domain.Directory
	logger *slog.Logger
}

func New(dir domain.Directory, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// ResolveUser returns the first user matching mobile or email.
func (r *Resolver) ResolveUser(ctx context.Context, mobile, email string) (domain.ResolvedRecipient, error) {
	if mobile == "" && email == "" {
		return domain.ResolvedRecipient{}, fmt.Errorf("user: %w", domain.ErrRecipientNotFound)
	}
	var mobiles, emails []string
	if mobile != "" {
		mobiles = []string{mobile}
	}
	if email != "" {
		emails = []string{email}
	}
	users, err := r.dir.LookupUsers(ctx, mobiles, emails)
	if err != nil {
		return domain.ResolvedRecipient{}, fmt.Errorf("lookup user: %w", err)
	}
	for _, u := range users {
		if u.OpenID == "" {
			continue
		}
		if len(users) > 1 {
			r.logger.Debug("multiple users matched, using first", "count", len(users))
		}
		return domain.UserRecipient(u.OpenID), nil
	}
	return domain.ResolvedRecipient{}, fmt.Errorf("user: %w", domain.ErrRecipientNotFound)
}

// ResolveGroup returns the first group named groupName along with its member list.
func (r *Resolver) ResolveGroup(ctx context.Context, groupName string) (*domain.GroupInfo, error) {
	if groupName == "" {
		return nil, fmt.Errorf("group: %w", domain.ErrRecipientNotFound)
	}
	ids, err := r.dir.LookupGroupIDsByName(ctx, groupName)
	if err != nil {
		return nil, fmt.Errorf("lookup group: %w", err)
	}
	if len(ids) == 0 || ids[0] == "" {
		return nil, fmt.Errorf("group %q: %w", groupName, domain.ErrRecipientNotFound)
	}
	if len(ids) > 1 {
		r.logger.Debug("multiple groups matched, using first", "group", groupName, "count", len(ids))
	}
	members, err := r.dir.LookupGroupMembers(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("lookup group members: %w", err)
	}
	if members == nil {
		members = []domain.MemberInfo{}
	}
	return &domain.GroupInfo{ChatID: ids[0], Name: groupName, Members: members}, nil
}

// ResolveGroupMember finds memberName inside the group named groupName.
func (r *Resolver) ResolveGroupMember(ctx context.Context, groupName, memberName string) (*domain.MemberInfo, error) {
	group, err := r.ResolveGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	return r.ResolveMemberIn(ctx, group.ChatID, memberName)
}

// ResolveMemberIn finds memberName in an already resolved chat.
func (r *Resolver) ResolveMemberIn(ctx context.Context, chatID, memberName string) (*domain.MemberInfo, error) {
	if memberName == "" {
		return nil, domain.ErrMemberNotFound
	}
	ids, err := r.dir.LookupMemberIDsByName(ctx, chatID, memberName)
	if err != nil {
		return nil, fmt.Errorf("lookup member: %w", err)
	}
	if len(ids) == 0 || ids[0] == "" {
		return nil, fmt.Errorf("%q: %w", memberName, domain.ErrMemberNotFound)
	}
	return &domain.MemberInfo{Name: memberName, OpenID: ids[0]}, nil
}

// Resolve maps a recipient spec to an address. The user selector wins when both are given;
// a group with a member name addresses that member.
func (r *Resolver) Resolve(ctx context.Context, spec domain.RecipientSpec) (domain.ResolvedRecipient, error) {
	switch {
	case spec.HasUser():
		return r.ResolveUser(ctx, spec.Mobile, spec.Email)
	case spec.HasGroup() && spec.MemberName != "":
		mem, err := r.ResolveGroupMember(ctx, spec.GroupName, spec.MemberName)
		if err != nil {
			return domain.ResolvedRecipient{}, err
		}
		return domain.UserRecipient(mem.OpenID), nil
	case spec.HasGroup():
		g, err := r.ResolveGroup(ctx, spec.GroupName)
		if err != nil {
			return domain.ResolvedRecipient{}, err
		}
		return domain.GroupRecipient(g.ChatID), nil
	default:
		return domain.ResolvedRecipient{}, domain.ErrNoRecipient
	}
}
