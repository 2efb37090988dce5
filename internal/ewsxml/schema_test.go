package ewsxml

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// testNote is a minimal entity exercising one field of each kind.
type testNote struct {
	ID      *string
	Subject *string
	Kind    *string
	Size    *int
	Flag    *bool
	Payload []byte
	Tags    []string
	Extra   *string
}

var testNoteSchema = NewSchema(TNS, "TestNote",
	&IDField{Base: Base{Name: "id", Wire: "Id"}},
	&TextField{Base: Base{Name: "subject", Wire: "Subject", Required: true}, MaxLen: 10},
	&ChoiceField{Base: Base{Name: "kind", Wire: "Kind"}, Choices: []string{"Plain", "Rich"}, Default: "Plain"},
	&IntField{Base: Base{Name: "size", Wire: "Size", ReadOnly: true}},
	&BoolField{Base: Base{Name: "flag", Wire: "Flag"}},
	&Base64Field{Base: Base{Name: "payload", Wire: "Payload"}},
	&StringListField{Base: Base{Name: "tags", Wire: "Tags"}},
	&TextField{Base: Base{Name: "extra", Wire: "Extra", MinVersion: Exchange2016}},
)

func (n *testNote) Schema() *Schema { return testNoteSchema }

func (n *testNote) Get(field string) interface{} {
	switch field {
	case "id":
		return n.ID
	case "subject":
		return n.Subject
	case "kind":
		return n.Kind
	case "size":
		return n.Size
	case "flag":
		return n.Flag
	case "payload":
		if n.Payload == nil {
			return nil
		}
		return n.Payload
	case "tags":
		return n.Tags
	case "extra":
		return n.Extra
	}
	panic("unknown testNote field " + field)
}

func (n *testNote) Set(field string, v interface{}) {
	switch field {
	case "id":
		n.ID, _ = v.(*string)
	case "subject":
		n.Subject, _ = v.(*string)
	case "kind":
		n.Kind, _ = v.(*string)
	case "size":
		n.Size, _ = v.(*int)
	case "flag":
		n.Flag, _ = v.(*bool)
	case "payload":
		n.Payload, _ = v.([]byte)
	case "tags":
		n.Tags, _ = v.([]string)
	case "extra":
		n.Extra, _ = v.(*string)
	default:
		panic("unknown testNote field " + field)
	}
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

func TestEncodeFollowsDeclarationOrder(t *testing.T) {
	n := &testNote{
		ID:      strptr("n1"),
		Subject: strptr("hello"),
		Flag:    boolptr(true),
		Payload: []byte("x"),
		Tags:    []string{"a", "b"},
	}
	el, err := testNoteSchema.Encode(n, Exchange2016)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var order []string
	for _, c := range el.Children {
		order = append(order, c.Local)
	}
	want := []string{"Subject", "Kind", "Flag", "Payload", "Tags"}
	if len(order) != len(want) {
		t.Fatalf("child order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("child order %v, want %v", order, want)
		}
	}
	if got := el.Attr("Id"); got != "n1" {
		t.Errorf("Id attribute %q, want %q", got, "n1")
	}
}

func TestEncodeSkipsReadOnlyFields(t *testing.T) {
	size := 42
	n := &testNote{Subject: strptr("s"), Size: &size}
	el, err := testNoteSchema.Encode(n, Exchange2013SP1)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if el.Find(TNS, "Size") != nil {
		t.Error("read-only field was encoded")
	}
}

func TestCleanRequiredAfterDefault(t *testing.T) {
	n := &testNote{}
	err := testNoteSchema.Clean(n)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "subject" {
		t.Errorf("validation error names field %q, want %q", ve.Field, "subject")
	}
}

func TestCleanAppliesChoiceDefault(t *testing.T) {
	n := &testNote{Subject: strptr("s")}
	if err := testNoteSchema.Clean(n); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if n.Kind == nil || *n.Kind != "Plain" {
		t.Errorf("default not applied, kind = %v", n.Kind)
	}
}

func TestCleanRejectsChoiceOutsideSet(t *testing.T) {
	n := &testNote{Subject: strptr("s"), Kind: strptr("Fancy")}
	err := testNoteSchema.Clean(n)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLocalChoiceAssignmentDefersValidation(t *testing.T) {
	// Assigning an illegal member locally is fine; only Clean rejects it.
	n := &testNote{Subject: strptr("s")}
	n.Set("kind", strptr("Fancy"))
	if n.Kind == nil || *n.Kind != "Fancy" {
		t.Fatal("local assignment was rejected")
	}
	if err := testNoteSchema.Clean(n); err == nil {
		t.Error("Clean accepted an illegal choice member")
	}
}

func TestDecodeRejectsChoiceOutsideSet(t *testing.T) {
	doc := `<t:TestNote xmlns:t="` + TNS + `"><t:Kind>Fancy</t:Kind></t:TestNote>`
	el, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var n testNote
	err = testNoteSchema.DecodeInto(el, &n)
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestCleanEnforcesMaxLength(t *testing.T) {
	n := &testNote{Subject: strptr("this subject is far too long")}
	if err := testNoteSchema.Clean(n); err == nil {
		t.Error("Clean accepted an overlong value")
	}
}

func TestBase64AbsentVersusEmpty(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNil   bool
		wantEmpty bool
	}{
		{name: "absent element", body: "", wantNil: true},
		{name: "empty element", body: "<t:Payload></t:Payload>", wantEmpty: true},
		{name: "payload", body: "<t:Payload>aGk=</t:Payload>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<t:TestNote xmlns:t="` + TNS + `"><t:Subject>s</t:Subject>` + tt.body + `</t:TestNote>`
			el, err := Parse(strings.NewReader(doc))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			var n testNote
			if err := testNoteSchema.DecodeInto(el, &n); err != nil {
				t.Fatalf("DecodeInto failed: %v", err)
			}
			switch {
			case tt.wantNil:
				if n.Payload != nil {
					t.Errorf("expected nil payload, got %v", n.Payload)
				}
			case tt.wantEmpty:
				if n.Payload == nil || len(n.Payload) != 0 {
					t.Errorf("expected empty non-nil payload, got %v", n.Payload)
				}
			default:
				if string(n.Payload) != "hi" {
					t.Errorf("expected %q, got %q", "hi", n.Payload)
				}
			}
		})
	}
}

func TestBase64HashKeepsStatesApart(t *testing.T) {
	absent := &testNote{Subject: strptr("s")}
	empty := &testNote{Subject: strptr("s"), Payload: []byte{}}
	if testNoteSchema.Hash(absent) == testNoteSchema.Hash(empty) {
		t.Error("absent and empty payloads hash equal")
	}
}

func TestForVersionDropsNewerFields(t *testing.T) {
	old := testNoteSchema.ForVersion(Exchange2013SP1)
	if old.Field("extra") != nil {
		t.Error("Exchange2013_SP1 variant still carries extra")
	}
	if old.Field("subject") == nil {
		t.Error("Exchange2013_SP1 variant lost subject")
	}

	current := testNoteSchema.ForVersion(Exchange2016)
	if current.Field("extra") == nil {
		t.Error("Exchange2016 variant dropped extra")
	}

	// Unknown versions count as newer than anything known.
	future := testNoteSchema.ForVersion("Exchange2099")
	if future.Field("extra") == nil {
		t.Error("unknown version dropped extra")
	}
}

func TestForVersionCachesVariants(t *testing.T) {
	a := testNoteSchema.ForVersion(Exchange2013SP1)
	b := testNoteSchema.ForVersion(Exchange2013SP1)
	if a != b {
		t.Error("variant was recomputed")
	}
}

// Schemas are package-level singletons shared by every request, so concurrent
// encodes must not mutate schema state. Run with -race.
func TestEncodeConcurrentSharedSchema(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := &testNote{Subject: strptr("s"), Payload: []byte("x")}
				if _, err := testNoteSchema.Encode(n, Exchange2013SP1); err != nil {
					t.Errorf("Encode failed: %v", err)
				}
				if _, err := testNoteSchema.Encode(n, "Exchange2099"); err != nil {
					t.Errorf("Encode failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestEncodeOmitsVersionGatedFields(t *testing.T) {
	n := &testNote{Subject: strptr("s"), Extra: strptr("x")}
	el, err := testNoteSchema.Encode(n, Exchange2013SP1)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if el.Find(TNS, "Extra") != nil {
		t.Error("version-gated field leaked into an older request")
	}
}

func TestHashSensitivity(t *testing.T) {
	a := &testNote{Subject: strptr("s"), Tags: []string{"x"}}
	b := &testNote{Subject: strptr("s"), Tags: []string{"y"}}
	if testNoteSchema.Hash(a) == testNoteSchema.Hash(b) {
		t.Error("distinct values hash equal")
	}
	c := &testNote{Subject: strptr("s"), Tags: []string{"x"}}
	if testNoteSchema.Hash(a) != testNoteSchema.Hash(c) {
		t.Error("equal values hash differently")
	}
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate field name did not panic")
		}
	}()
	NewSchema(TNS, "Dup",
		&TextField{Base: Base{Name: "a", Wire: "A"}},
		&TextField{Base: Base{Name: "a", Wire: "B"}},
	)
}

func TestDecodeRoundTrip(t *testing.T) {
	n := &testNote{
		ID:      strptr("n1"),
		Subject: strptr("hello"),
		Kind:    strptr("Rich"),
		Flag:    boolptr(false),
		Payload: []byte("data"),
		Tags:    []string{"one", "two"},
	}
	el, err := testNoteSchema.Encode(n, Exchange2016)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	rendered, err := el.MarshalString()
	if err != nil {
		t.Fatalf("MarshalString failed: %v", err)
	}
	doc := strings.Replace(rendered, "<t:TestNote", `<t:TestNote xmlns:t="`+TNS+`"`, 1)
	parsed, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var back testNote
	if err := testNoteSchema.DecodeInto(parsed, &back); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if testNoteSchema.Hash(n) != testNoteSchema.Hash(&back) {
		t.Error("round trip changed the structural hash")
	}
	if back.ID == nil || *back.ID != "n1" {
		t.Errorf("round trip lost the id attribute: %v", back.ID)
	}
}
