package properties

import (
	"errors"
	"strings"
	"testing"

	"ews-api/internal/ewsxml"
)

func TestMailboxValidate(t *testing.T) {
	tests := []struct {
		name    string
		mailbox *Mailbox
		wantErr bool
	}{
		{
			name:    "email address only",
			mailbox: &Mailbox{EmailAddress: String("a@example.com")},
		},
		{
			name:    "item id only",
			mailbox: &Mailbox{ItemID: &ItemID{ID: "x", ChangeKey: "y"}},
		},
		{
			name:    "neither",
			mailbox: &Mailbox{Name: String("Orphan")},
			wantErr: true,
		},
		{
			name:    "empty email and no item id",
			mailbox: &Mailbox{EmailAddress: String("")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mailbox.Schema().Clean(tt.mailbox)
			if tt.wantErr {
				if !errors.Is(err, ErrMailboxUnaddressable) {
					t.Errorf("expected ErrMailboxUnaddressable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Clean failed: %v", err)
			}
		})
	}
}

func TestMailboxCleanDefaultsType(t *testing.T) {
	m := &Mailbox{EmailAddress: String("a@example.com")}
	if err := m.Schema().Clean(m); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if m.MailboxType == nil || *m.MailboxType != "Mailbox" {
		t.Errorf("MailboxType = %v, want Mailbox", m.MailboxType)
	}
}

func TestMailboxHash(t *testing.T) {
	a := &Mailbox{EmailAddress: String("User@Example.com")}
	b := &Mailbox{EmailAddress: String("user@example.com"), Name: String("User")}
	if a.Hash() != b.Hash() {
		t.Error("address comparison is not case-insensitive or leaks the name")
	}

	c := &Mailbox{EmailAddress: String("other@example.com")}
	if a.Hash() == c.Hash() {
		t.Error("distinct addresses hash equal")
	}

	// A known item identity wins over the address.
	d := &Mailbox{EmailAddress: String("user@example.com"), ItemID: &ItemID{ID: "x", ChangeKey: "y"}}
	if a.Hash() == d.Hash() {
		t.Error("item identity did not override the address hash")
	}
}

func TestDecodeMailbox(t *testing.T) {
	doc := `<t:Mailbox xmlns:t="` + ewsxml.TNS + `">
		<t:Name>John Doe</t:Name>
		<t:EmailAddress>john.doe@example.com</t:EmailAddress>
		<t:MailboxType>Mailbox</t:MailboxType>
	</t:Mailbox>`
	el, err := ewsxml.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m, err := DecodeMailbox(el)
	if err != nil {
		t.Fatalf("DecodeMailbox failed: %v", err)
	}
	if m.Name == nil || *m.Name != "John Doe" {
		t.Errorf("Name = %v", m.Name)
	}
	if m.EmailAddress == nil || *m.EmailAddress != "john.doe@example.com" {
		t.Errorf("EmailAddress = %v", m.EmailAddress)
	}
}

func TestMessageHeaderShape(t *testing.T) {
	doc := `<t:InternetMessageHeader xmlns:t="` + ewsxml.TNS + `" HeaderName="X-Mailer">ews-api</t:InternetMessageHeader>`
	el, err := ewsxml.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var h MessageHeader
	if err := h.Schema().DecodeInto(el, &h); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if h.Name == nil || *h.Name != "X-Mailer" {
		t.Errorf("Name = %v", h.Name)
	}
	if h.Value == nil || *h.Value != "ews-api" {
		t.Errorf("Value = %v", h.Value)
	}

	el, err = h.Schema().Encode(&h, ewsxml.Exchange2013SP1)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if el.Attr("HeaderName") != "X-Mailer" {
		t.Error("header name did not encode as an attribute")
	}
	if el.Text != "ews-api" {
		t.Error("header value did not encode as element text")
	}
}

func TestAttendeeHashFollowsMailbox(t *testing.T) {
	a := &Attendee{
		Mailbox:      &Mailbox{EmailAddress: String("who@example.com")},
		ResponseType: String("Accept"),
	}
	b := &Attendee{
		Mailbox:      &Mailbox{EmailAddress: String("who@example.com")},
		ResponseType: String("Decline"),
	}
	if a.Hash() != b.Hash() {
		t.Error("response state leaked into attendee identity")
	}
	if (&Attendee{}).Hash() != 0 {
		t.Error("attendee without mailbox should hash to zero")
	}
}

func TestAttendeeCleanRequiresMailbox(t *testing.T) {
	a := &Attendee{ResponseType: String("Accept")}
	if err := a.Schema().Clean(a); err == nil {
		t.Error("Clean accepted an attendee without a mailbox")
	}
}
