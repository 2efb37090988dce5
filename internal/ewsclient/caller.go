// Package ewsclient implements the service-call boundary of the mapping
// layer: operation builders for the EWS requests this service issues, the
// Caller contract the entity packages consume, and a SOAP/HTTP transport
// implementing it against a real Exchange server.
package ewsclient

import (
	"context"
	"fmt"

	"ews-api/internal/ewsxml"
)

// Result is one per-item outcome of a batched call: either the decoded XML
// fragment for that item or the error the server reported for it. Results
// align positionally with the request items.
type Result struct {
	Elem *ewsxml.Element
	Err  error
}

// Operation describes one EWS operation: its wire name, how many items it
// carries, how to build its body element and how to pull the per-item
// payload fragment out of one response message.
type Operation interface {
	OpName() string
	ItemCount() int
	BuildBody(version string) (*ewsxml.Element, error)
	Payload(msg *ewsxml.Element) (*ewsxml.Element, error)
}

// Impersonator is implemented by operations that address a mailbox other
// than the authenticating account; the transport adds an
// ExchangeImpersonation header for them.
type Impersonator interface {
	Impersonate() string
}

// Caller executes one operation synchronously and returns exactly one Result
// per request item. It never retries and never suppresses per-item errors;
// the entity layer treats it as the entire network contract.
type Caller interface {
	Call(ctx context.Context, op Operation) ([]Result, error)
}

// RemoteError is a per-item failure reported by the Exchange server. It is
// propagated to the caller unchanged; this layer adds no retry or recovery.
type RemoteError struct {
	Class   string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("EWS error %s (%s): %s", e.Code, e.Class, e.Message)
	}
	return fmt.Sprintf("EWS error %s (%s)", e.Code, e.Class)
}
