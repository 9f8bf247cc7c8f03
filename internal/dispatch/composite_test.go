package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"larkmcp/internal/content"
	"larkmcp/internal/domain"
	"larkmcp/internal/fake"
)

func TestComposePost_OneElementPerLine(t *testing.T) {
	m := fake.Engineering()
	out := newRouter(m).ComposePost(context.Background(), ComposeRequest{
		Recipient: groupSpec("Engineering"),
		Title:     "Release",
		Elements: []domain.ContentElement{
			domain.Text{Content: "v2 is out", Styles: []domain.Style{domain.StyleBold}},
			domain.AtUser{Name: "Bob"},
			domain.AtUser{Name: "Eve"},
			domain.AtAll{},
			domain.Link{Text: "notes", URL: "https://n"},
			domain.Divider{},
		},
	})
	if !out.OK() {
		t.Fatalf("compose: %s", out.Error)
	}
	doc := m.Calls()[0].Doc
	if doc.Title != "Release" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	if len(doc.Lines) != 5 {
		t.Fatalf("expected 5 lines (Eve skipped), got %d", len(doc.Lines))
	}
	for i, line := range doc.Lines {
		if len(line) != 1 {
			t.Fatalf("line %d: expected one element, got %d", i, len(line))
		}
	}
	at := doc.Lines[1][0].(domain.AtUser)
	if at.UserID != "o42" {
		t.Fatalf("expected Bob resolved to o42, got %+v", at)
	}
}

func TestComposePost_MentionsNeedGroup(t *testing.T) {
	m := fake.Engineering()
	out := newRouter(m).ComposePost(context.Background(), ComposeRequest{
		Recipient: domain.RecipientSpec{Email: "carol@example.com"},
		Title:     "DM",
		Elements:  []domain.ContentElement{domain.AtUser{Name: "Bob"}, domain.Text{Content: "hi"}},
	})
	if !out.OK() {
		t.Fatalf("compose: %s", out.Error)
	}
	doc := m.Calls()[0].Doc
	if len(doc.Lines) != 1 {
		t.Fatalf("expected mention dropped without a group, got %d lines", len(doc.Lines))
	}
}

func TestComposePost_UserWithGroupContext(t *testing.T) {
	m := fake.Engineering()
	newRouter(m).ComposePost(context.Background(), ComposeRequest{
		Recipient: domain.RecipientSpec{Email: "carol@example.com", GroupName: "Engineering"},
		Elements:  []domain.ContentElement{domain.AtUser{Name: "Bob"}},
	})
	call := m.Calls()[0]
	if call.To.Kind != domain.RecipientUser {
		t.Fatalf("expected user recipient, got %v", call.To.Kind)
	}
	if len(call.Doc.Lines) != 1 || call.Doc.Lines[0][0].(domain.AtUser).UserID != "o42" {
		t.Fatalf("expected Bob resolved through the named group, got %+v", call.Doc.Lines)
	}
}

func TestComposePost_NoRecipient(t *testing.T) {
	m := fake.Engineering()
	out := newRouter(m).ComposePost(context.Background(), ComposeRequest{Title: "x"})
	if out.Error != "No valid recipient specified" {
		t.Fatalf("unexpected outcome %q", out.Error)
	}
}

func TestNotifyGroup_Layout(t *testing.T) {
	m := fake.Engineering()
	out := newRouter(m).NotifyGroup(context.Background(), Notification{
		GroupName: "Engineering",
		Text:      "freeze",
		AtAll:     true,
		Members:   []string{"Bob", "Eve"},
		Bold:      true,
		Strike:    true,
		Link:      &LinkSpec{Text: "calendar", URL: "https://cal"},
	})
	if !out.OK() {
		t.Fatalf("notify: %s", out.Error)
	}
	want := content.AtAll() + "\n" +
		content.AtSomeone("o42", "Bob", content.IDKindOpenID) + " \n" +
		"<s><b>freeze</b></s>" +
		"\n[calendar](https://cal)"
	if got := m.Calls()[0].Payload; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNotifyGroup_MissingGroup(t *testing.T) {
	out := newRouter(fake.Engineering()).NotifyGroup(context.Background(), Notification{GroupName: "Sales", Text: "x"})
	if out.Error != "Group not found" {
		t.Fatalf("expected Group not found, got %q", out.Error)
	}
}

func TestMeetingSummary_Layout(t *testing.T) {
	m := fake.Engineering()
	out := newRouter(m).MeetingSummary(context.Background(), Meeting{
		GroupName: "Engineering",
		Title:     "Retro",
		Attendees: []string{"Alice", "Bob", "Eve"},
		Content:   "went well",
		Emoji:     "THUMBSUP",
		Code:      &domain.CodeBlock{Language: "sh", Code: "make release"},
	})
	if !out.OK() {
		t.Fatalf("summary: %s", out.Error)
	}
	doc := m.Calls()[0].Doc
	if len(doc.Lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(doc.Lines))
	}
	if len(doc.Lines[0]) != 3 {
		t.Fatalf("expected label plus two attendees on line 0, got %d", len(doc.Lines[0]))
	}
	label := doc.Lines[0][0].(domain.Text)
	if label.Content != AttendeesLabel || label.Styles[0] != domain.StyleBold {
		t.Fatalf("unexpected label %+v", label)
	}
	if at := doc.Lines[0][1].(domain.AtUser); at.UserID != "o7" || at.Styles[0] != domain.StyleItalic {
		t.Fatalf("unexpected attendee %+v", at)
	}
	if _, ok := doc.Lines[1][0].(domain.Divider); !ok {
		t.Fatal("expected divider on line 1")
	}
	if txt, ok := doc.Lines[2][0].(domain.Text); !ok || txt.Content != "went well" {
		t.Fatalf("expected plain body, got %+v", doc.Lines[2][0])
	}
	if _, ok := doc.Lines[4][0].(domain.CodeBlock); !ok {
		t.Fatal("expected code block last")
	}
}

func TestMeetingSummary_MarkdownReplacesContent(t *testing.T) {
	m := fake.Engineering()
	newRouter(m).MeetingSummary(context.Background(), Meeting{GroupName: "Engineering", Content: "plain", Markdown: "**rich**"})
	doc := m.Calls()[0].Doc
	if md, ok := doc.Lines[2][0].(domain.Markdown); !ok || md.Content != "**rich**" {
		t.Fatalf("expected markdown body, got %+v", doc.Lines[2][0])
	}
	if len(doc.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(doc.Lines))
	}
}

func TestSendMultimedia_IndependentSlots(t *testing.T) {
	m := fake.Engineering()
	m.ImageKey = ""
	out := newRouter(m).SendMultimedia(context.Background(), Multimedia{
		GroupName: "Engineering",
		Message:   "assets",
		ImagePath: "/tmp/a.png",
		AudioPath: "/tmp/a.opus",
		FilePath:  "/tmp/a.zip",
	})
	if out.Error != "" {
		t.Fatalf("unexpected batch error %q", out.Error)
	}
	if len(out.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(out.Results))
	}
	if out.Results["image"].Error != "Image upload failed" {
		t.Fatalf("expected image failure, got %+v", out.Results["image"])
	}
	for _, key := range []string{"message", "audio", "file"} {
		if !out.Results[key].OK() {
			t.Fatalf("%s: expected success, got %q", key, out.Results[key].Error)
		}
	}
	if _, ok := out.Results["video"]; ok {
		t.Fatal("video was not requested")
	}
	if m.SendCount() != 3 {
		t.Fatalf("expected 3 sends, got %d", m.SendCount())
	}
}

func TestSendMultimedia_MissingGroupJSON(t *testing.T) {
	out := newRouter(fake.Engineering()).SendMultimedia(context.Background(), Multimedia{GroupName: "Sales", ImagePath: "/tmp/a.png"})
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"error":"Group not found"}` {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestShareGroupAndUser(t *testing.T) {
	m := fake.Engineering()
	m.Groups = append(m.Groups, domain.GroupSummary{ChatID: "c2", Name: "Design"})
	r := newRouter(m)

	out := r.ShareGroupAndUser(context.Background(), ShareRequest{SourceGroup: "Design", TargetGroup: "Engineering", UserEmail: "carol@example.com"})
	if out.Error != "" {
		t.Fatalf("share: %s", out.Error)
	}
	calls := m.Calls()
	if len(calls) != 2 || calls[0].Method != "share_chat" || calls[0].Payload != "c2" || calls[0].To.ID != "c1" {
		t.Fatalf("unexpected share_chat call %+v", calls)
	}
	if calls[1].Method != "share_user" || calls[1].Payload != "ou_carol" {
		t.Fatalf("unexpected share_user call %+v", calls[1])
	}

	out = r.ShareGroupAndUser(context.Background(), ShareRequest{SourceGroup: "Design", TargetGroup: "Engineering", UserMobile: "+1000"})
	if out.Results["share_user"].Error != "User not found" {
		t.Fatalf("expected User not found, got %+v", out.Results["share_user"])
	}
	data, _ := json.Marshal(out)
	if !strings.Contains(string(data), `"share_chat"`) {
		t.Fatalf("expected share_chat in %s", data)
	}
}

func TestShareGroupAndUser_MissingGroups(t *testing.T) {
	r := newRouter(fake.Engineering())
	if out := r.ShareGroupAndUser(context.Background(), ShareRequest{SourceGroup: "Nope", TargetGroup: "Engineering"}); out.Error != "Source group not found" {
		t.Fatalf("unexpected %q", out.Error)
	}
	if out := r.ShareGroupAndUser(context.Background(), ShareRequest{SourceGroup: "Engineering", TargetGroup: "Nope"}); out.Error != "Target group not found" {
		t.Fatalf("unexpected %q", out.Error)
	}
}
