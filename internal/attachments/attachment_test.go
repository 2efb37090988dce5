package attachments

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"ews-api/internal/ewsclient"
	"ews-api/internal/ewsxml"
	"ews-api/internal/items"
	"ews-api/internal/properties"
)

// MockCaller is a mock implementation of the ewsclient.Caller interface for
// testing the attachment lifecycle without a server.
type MockCaller struct {
	CallFunc func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error)
	Calls    int
}

func (m *MockCaller) Call(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
	m.Calls++
	if m.CallFunc != nil {
		return m.CallFunc(ctx, op)
	}
	return nil, nil
}

func newParent(session ewsclient.Caller) *items.Message {
	return &items.Message{
		Session: session,
		Mailbox: "someone@example.com",
		ItemID:  &properties.ItemID{ID: "item-1", ChangeKey: "ck-1"},
	}
}

// createdAttachmentElem is the payload fragment CreateAttachment returns: the
// attachment element carrying the new identity plus the root item echo.
func createdAttachmentElem(local, attID, rootID, rootCK string) *ewsxml.Element {
	el := ewsxml.NewElement(ewsxml.TNS, local)
	id := ewsxml.NewElement(ewsxml.TNS, "AttachmentId")
	id.SetAttr("Id", attID)
	id.SetAttr("RootItemId", rootID)
	id.SetAttr("RootItemChangeKey", rootCK)
	el.Add(id)
	return el
}

func rootItemIDElem(rootID, rootCK string) *ewsxml.Element {
	el := ewsxml.NewElement(ewsxml.MNS, "RootItemId")
	el.SetAttr("RootItemId", rootID)
	el.SetAttr("RootItemChangeKey", rootCK)
	return el
}

func TestFileAttachmentAttach(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			create, ok := op.(*ewsclient.CreateAttachment)
			if !ok {
				t.Fatalf("unexpected operation %T", op)
			}
			if create.ParentItem.ID != "item-1" || create.ParentItem.ChangeKey != "ck-1" {
				t.Errorf("parent item = %+v", create.ParentItem)
			}
			if len(create.Items) != 1 {
				t.Fatalf("expected 1 request item, got %d", len(create.Items))
			}
			return []ewsclient.Result{
				{Elem: createdAttachmentElem("FileAttachment", "att-1", "item-1", "ck-2")},
			}, nil
		},
	}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", []byte("hello"))

	if err := fa.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if !fa.IsAttached() {
		t.Fatal("attachment has no identity after Attach")
	}
	if fa.AttachmentID.ID != "att-1" {
		t.Errorf("AttachmentID.ID = %q", fa.AttachmentID.ID)
	}
	if fa.AttachmentID.RootID != "" || fa.AttachmentID.RootChangeKey != "" {
		t.Errorf("root item pair not stripped: %+v", fa.AttachmentID)
	}
	if parent.ItemID.ChangeKey != "ck-2" {
		t.Errorf("parent change key = %q, want ck-2", parent.ItemID.ChangeKey)
	}
}

func TestAttachTwiceDoesNotCall(t *testing.T) {
	mock := &MockCaller{}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", []byte("hello"))
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	err := fa.Attach(context.Background())
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}
	if mock.Calls != 0 {
		t.Errorf("collaborator was called %d times", mock.Calls)
	}
}

func TestAttachWithoutSession(t *testing.T) {
	fa := NewFileAttachment(&items.Message{ItemID: &properties.ItemID{ID: "i", ChangeKey: "c"}}, "f", nil)
	if err := fa.Attach(context.Background()); !errors.Is(err, ErrNoParentItem) {
		t.Errorf("expected ErrNoParentItem, got %v", err)
	}

	fa = NewFileAttachment(nil, "f", nil)
	if err := fa.Attach(context.Background()); !errors.Is(err, ErrNoParentItem) {
		t.Errorf("expected ErrNoParentItem, got %v", err)
	}
}

func TestAttachConsistencyFailures(t *testing.T) {
	tests := []struct {
		name   string
		rootID string
		rootCK string
	}{
		{name: "foreign root item", rootID: "item-OTHER", rootCK: "ck-2"},
		{name: "change key did not advance", rootID: "item-1", rootCK: "ck-1"},
		{name: "change key missing", rootID: "item-1", rootCK: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockCaller{
				CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
					return []ewsclient.Result{
						{Elem: createdAttachmentElem("FileAttachment", "att-1", tt.rootID, tt.rootCK)},
					}, nil
				},
			}
			parent := newParent(mock)
			fa := NewFileAttachment(parent, "report.txt", []byte("hello"))

			err := fa.Attach(context.Background())
			var pe *ewsxml.ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if fa.IsAttached() {
				t.Error("identity was bound despite the consistency failure")
			}
			if parent.ItemID.ChangeKey != "ck-1" {
				t.Errorf("parent change key mutated to %q", parent.ItemID.ChangeKey)
			}
		})
	}
}

func TestAttachPropagatesRemoteError(t *testing.T) {
	remote := &ewsclient.RemoteError{Class: "Error", Code: "ErrorQuotaExceeded"}
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			return []ewsclient.Result{{Err: remote}}, nil
		},
	}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", []byte("hello"))

	err := fa.Attach(context.Background())
	var re *ewsclient.RemoteError
	if !errors.As(err, &re) || re.Code != "ErrorQuotaExceeded" {
		t.Fatalf("expected the remote error back, got %v", err)
	}
	if fa.IsAttached() {
		t.Error("identity was bound despite the remote failure")
	}
}

func TestDetach(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			del, ok := op.(*ewsclient.DeleteAttachment)
			if !ok {
				t.Fatalf("unexpected operation %T", op)
			}
			if len(del.IDs) != 1 || del.IDs[0].ID != "att-1" {
				t.Errorf("delete ids = %+v", del.IDs)
			}
			return []ewsclient.Result{{Elem: rootItemIDElem("item-1", "ck-3")}}, nil
		},
	}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", []byte("hello"))
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	if err := fa.Detach(context.Background()); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if fa.AttachmentID != nil || fa.Parent != nil {
		t.Error("Detach did not consume the instance")
	}
	if parent.ItemID.ChangeKey != "ck-3" {
		t.Errorf("parent change key = %q, want ck-3", parent.ItemID.ChangeKey)
	}
}

func TestDetachUnattached(t *testing.T) {
	mock := &MockCaller{}
	fa := NewFileAttachment(newParent(mock), "report.txt", nil)
	if err := fa.Detach(context.Background()); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
	if mock.Calls != 0 {
		t.Errorf("collaborator was called %d times", mock.Calls)
	}
}

func TestDetachConsistencyFailureMutatesNothing(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			return []ewsclient.Result{{Elem: rootItemIDElem("item-1", "ck-1")}}, nil
		},
	}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", nil)
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	err := fa.Detach(context.Background())
	var pe *ewsxml.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if fa.AttachmentID == nil || fa.Parent == nil {
		t.Error("instance was consumed despite the consistency failure")
	}
	if parent.ItemID.ChangeKey != "ck-1" {
		t.Errorf("parent change key mutated to %q", parent.ItemID.ChangeKey)
	}
}

func TestValidateDefaultsContentType(t *testing.T) {
	tests := []struct {
		name string
		file string
		set  *string
		want string
	}{
		{name: "unknown extension", file: "blob.xyz123", want: "application/octet-stream"},
		{name: "no extension", file: "README", want: "application/octet-stream"},
		{name: "explicit type wins", file: "data.bin", set: properties.String("text/plain"), want: "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attachment{Name: &tt.file, ContentType: tt.set}
			if err := a.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if a.ContentType == nil || *a.ContentType != tt.want {
				t.Errorf("ContentType = %v, want %q", a.ContentType, tt.want)
			}
		})
	}
}

func TestFileContentLazyFetch(t *testing.T) {
	payload := []byte("attachment bytes")
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			get, ok := op.(*ewsclient.GetAttachment)
			if !ok {
				t.Fatalf("unexpected operation %T", op)
			}
			if get.IncludeMIMEContent {
				t.Error("file content fetch asked for MIME content")
			}
			el := ewsxml.NewElement(ewsxml.TNS, "FileAttachment")
			content := ewsxml.NewElement(ewsxml.TNS, "Content")
			content.Text = base64.StdEncoding.EncodeToString(payload)
			el.Add(content)
			return []ewsclient.Result{{Elem: el}}, nil
		},
	}
	fa := &FileAttachment{}
	fa.Parent = newParent(mock)
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	got, err := fa.Content(context.Background())
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Content = %q, want %q", got, payload)
	}
	if _, err := fa.Content(context.Background()); err != nil {
		t.Fatalf("second Content failed: %v", err)
	}
	if mock.Calls != 1 {
		t.Errorf("collaborator called %d times, want 1", mock.Calls)
	}
}

func TestFileContentCachesAbsent(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			// No Content child at all.
			return []ewsclient.Result{{Elem: ewsxml.NewElement(ewsxml.TNS, "FileAttachment")}}, nil
		},
	}
	fa := &FileAttachment{}
	fa.Parent = newParent(mock)
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	got, err := fa.Content(context.Background())
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if got != nil {
		t.Errorf("Content = %v, want nil", got)
	}

	// Absent is a resolved state; no refetch.
	if _, err := fa.Content(context.Background()); err != nil {
		t.Fatalf("second Content failed: %v", err)
	}
	if mock.Calls != 1 {
		t.Errorf("collaborator called %d times, want 1", mock.Calls)
	}
}

func TestFileContentEmptyVersusAbsent(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			el := ewsxml.NewElement(ewsxml.TNS, "FileAttachment")
			el.Add(ewsxml.NewElement(ewsxml.TNS, "Content"))
			return []ewsclient.Result{{Elem: el}}, nil
		},
	}
	fa := &FileAttachment{}
	fa.Parent = newParent(mock)
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	got, err := fa.Content(context.Background())
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Content = %v, want empty non-nil slice", got)
	}
}

func TestFileContentUnattached(t *testing.T) {
	fa := &FileAttachment{}
	fa.Parent = newParent(&MockCaller{})
	if _, err := fa.Content(context.Background()); !errors.Is(err, ErrNotAttached) {
		t.Errorf("expected ErrNotAttached, got %v", err)
	}
}

func TestSetContentSkipsFetch(t *testing.T) {
	mock := &MockCaller{}
	fa := &FileAttachment{}
	fa.Parent = newParent(mock)
	fa.AttachmentID = &properties.AttachmentID{ID: "att-1"}
	fa.SetContent([]byte("local"))

	got, err := fa.Content(context.Background())
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if string(got) != "local" {
		t.Errorf("Content = %q", got)
	}
	if mock.Calls != 0 {
		t.Errorf("collaborator called %d times, want 0", mock.Calls)
	}
}

func TestItemAttachmentLazyFetch(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			get, ok := op.(*ewsclient.GetAttachment)
			if !ok {
				t.Fatalf("unexpected operation %T", op)
			}
			if !get.IncludeMIMEContent {
				t.Error("item fetch did not ask for MIME content")
			}
			el := ewsxml.NewElement(ewsxml.TNS, "ItemAttachment")
			msg := ewsxml.NewElement(ewsxml.TNS, "Message")
			subject := ewsxml.NewElement(ewsxml.TNS, "Subject")
			subject.Text = "nested"
			msg.Add(subject)
			el.Add(msg)
			return []ewsclient.Result{{Elem: el}}, nil
		},
	}
	parent := newParent(mock)
	ia := &ItemAttachment{}
	ia.Parent = parent
	ia.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	msg, err := ia.Item(context.Background())
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if msg.Subject == nil || *msg.Subject != "nested" {
		t.Errorf("Subject = %v", msg.Subject)
	}
	if msg.Session != parent.Session {
		t.Error("fetched item did not inherit the parent session")
	}

	again, err := ia.Item(context.Background())
	if err != nil {
		t.Fatalf("second Item failed: %v", err)
	}
	if again != msg {
		t.Error("second Item returned a different instance")
	}
	if mock.Calls != 1 {
		t.Errorf("collaborator called %d times, want 1", mock.Calls)
	}
}

func TestItemAttachmentFetchWithoutItem(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			return []ewsclient.Result{{Elem: ewsxml.NewElement(ewsxml.TNS, "ItemAttachment")}}, nil
		},
	}
	ia := &ItemAttachment{}
	ia.Parent = newParent(mock)
	ia.AttachmentID = &properties.AttachmentID{ID: "att-1"}

	_, err := ia.Item(context.Background())
	var pe *ewsxml.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestItemAttachmentAttach(t *testing.T) {
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			return []ewsclient.Result{
				{Elem: createdAttachmentElem("ItemAttachment", "att-9", "item-1", "ck-2")},
			}, nil
		},
	}
	parent := newParent(mock)
	nested := &items.Message{Subject: properties.String("forwarded")}
	ia := NewItemAttachment(parent, "fwd.eml", nested)

	if err := ia.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if ia.AttachmentID == nil || ia.AttachmentID.ID != "att-9" {
		t.Errorf("AttachmentID = %+v", ia.AttachmentID)
	}
}

// Item identities are mailbox-scoped, so every attachment operation must run
// under the same impersonated account the parent item was read from.
func TestAttachmentOpsImpersonateParentMailbox(t *testing.T) {
	var impersonated []string
	mock := &MockCaller{
		CallFunc: func(ctx context.Context, op ewsclient.Operation) ([]ewsclient.Result, error) {
			imp, ok := op.(ewsclient.Impersonator)
			if !ok {
				t.Fatalf("%T does not impersonate", op)
			}
			impersonated = append(impersonated, imp.Impersonate())
			switch op.(type) {
			case *ewsclient.CreateAttachment:
				return []ewsclient.Result{
					{Elem: createdAttachmentElem("FileAttachment", "att-1", "item-1", "ck-2")},
				}, nil
			case *ewsclient.GetAttachment:
				return []ewsclient.Result{{Elem: ewsxml.NewElement(ewsxml.TNS, "FileAttachment")}}, nil
			case *ewsclient.DeleteAttachment:
				return []ewsclient.Result{{Elem: rootItemIDElem("item-1", "ck-3")}}, nil
			}
			t.Fatalf("unexpected operation %T", op)
			return nil, nil
		},
	}
	parent := newParent(mock)
	fa := NewFileAttachment(parent, "report.txt", []byte("hello"))

	if err := fa.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	fa.contentResolved = false
	if _, err := fa.Content(context.Background()); err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if err := fa.Detach(context.Background()); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	if len(impersonated) != 3 {
		t.Fatalf("collaborator called %d times, want 3", len(impersonated))
	}
	for i, mailbox := range impersonated {
		if mailbox != "someone@example.com" {
			t.Errorf("call %d impersonated %q, want the parent mailbox", i, mailbox)
		}
	}
}

func TestAttachmentHashSwitchesToIdentity(t *testing.T) {
	a := &FileAttachment{}
	a.Name = properties.String("report.txt")
	b := &FileAttachment{}
	b.Name = properties.String("other.txt")
	if a.Hash() == b.Hash() {
		t.Error("distinct unattached attachments hash equal")
	}

	id := &properties.AttachmentID{ID: "att-1"}
	a.AttachmentID = id
	b.AttachmentID = id
	if a.Hash() != b.Hash() {
		t.Error("same identity hashed differently")
	}
	if !a.Equal(b) {
		t.Error("same identity compared unequal")
	}
}
