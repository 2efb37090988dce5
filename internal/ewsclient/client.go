package ewsclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"ews-api/internal/ewsxml"
)

// Client is the SOAP/HTTP transport implementing Caller against a real
// Exchange server. It is deliberately thin: one POST per Call, basic auth,
// no retries. Retry policy belongs to whoever drives this client.
type Client struct {
	config     *Config
	httpClient *http.Client
	authUser   string
}

// NewClient creates a transport from a validated configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("EWS config is nil")
	}
	if err := ValidateEWSURL(cfg.ServerURL); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		authUser: authUsername(cfg),
	}, nil
}

// authUsername formats the login for the configured auth scheme: with a
// domain it becomes "DOMAIN\user" for NTLM-style gateways, otherwise the
// plain username for basic auth.
func authUsername(cfg *Config) string {
	if cfg.Domain != "" {
		return cfg.Domain + "\\" + cfg.Username
	}
	return cfg.Username
}

// Call builds the SOAP envelope for op, posts it, and demultiplexes the
// per-item response messages into a Result slice aligned with the request.
func (c *Client) Call(ctx context.Context, op Operation) ([]Result, error) {
	body, err := op.BuildBody(c.config.Version)
	if err != nil {
		return nil, err
	}

	env := c.envelope(op, body)
	payload, err := renderEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SOAP request: %w", err)
	}

	root, err := c.send(ctx, payload)
	if err != nil {
		return nil, err
	}
	return demux(op, root)
}

func (c *Client) envelope(op Operation, body *ewsxml.Element) *ewsxml.Element {
	env := ewsxml.NewElement(ewsxml.SOAPNS, "Envelope")
	env.SetAttr("xmlns:soap", ewsxml.SOAPNS)
	env.SetAttr("xmlns:xsi", ewsxml.XSINS)
	env.SetAttr("xmlns:m", ewsxml.MNS)
	env.SetAttr("xmlns:t", ewsxml.TNS)

	header := ewsxml.NewElement(ewsxml.SOAPNS, "Header")
	version := ewsxml.NewElement(ewsxml.TNS, "RequestServerVersion")
	version.SetAttr("Version", c.config.Version)
	header.Add(version)

	if imp, ok := op.(Impersonator); ok && imp.Impersonate() != "" {
		impersonation := ewsxml.NewElement(ewsxml.TNS, "ExchangeImpersonation")
		sid := ewsxml.NewElement(ewsxml.TNS, "ConnectingSID")
		addr := ewsxml.NewElement(ewsxml.TNS, "PrimarySmtpAddress")
		addr.Text = imp.Impersonate()
		sid.Add(addr)
		impersonation.Add(sid)
		header.Add(impersonation)
	}
	env.Add(header)

	soapBody := ewsxml.NewElement(ewsxml.SOAPNS, "Body")
	soapBody.Add(body)
	env.Add(soapBody)
	return env
}

func renderEnvelope(env *ewsxml.Element) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := env.WriteXML(enc); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) send(ctx context.Context, payload []byte) (*ewsxml.Element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.SetBasicAuth(c.authUser, c.config.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("EWS server returned status %d: %s", resp.StatusCode, string(body))
	}

	root, err := ewsxml.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SOAP response: %w", err)
	}
	return root, nil
}

// demux splits a SOAP response envelope into one Result per response
// message, translating non-success response classes into RemoteErrors.
func demux(op Operation, root *ewsxml.Element) ([]Result, error) {
	body := root.Find(ewsxml.SOAPNS, "Body")
	if body == nil {
		return nil, ewsxml.ProtocolErrorf("SOAP response has no Body")
	}
	opResp := body.Find(ewsxml.MNS, op.OpName()+"Response")
	if opResp == nil {
		return nil, ewsxml.ProtocolErrorf("SOAP response has no %sResponse", op.OpName())
	}
	messages := opResp.Find(ewsxml.MNS, "ResponseMessages")
	if messages == nil {
		return nil, ewsxml.ProtocolErrorf("%sResponse has no ResponseMessages", op.OpName())
	}
	msgEls := messages.FindAll(ewsxml.MNS, op.OpName()+"ResponseMessage")
	if len(msgEls) != op.ItemCount() {
		return nil, ewsxml.ProtocolErrorf("expected %d response messages for %s, got %d",
			op.ItemCount(), op.OpName(), len(msgEls))
	}

	results := make([]Result, 0, len(msgEls))
	for _, msg := range msgEls {
		if cls := msg.Attr("ResponseClass"); cls != "Success" {
			results = append(results, Result{Err: remoteError(cls, msg)})
			continue
		}
		payload, err := op.Payload(msg)
		if err != nil {
			results = append(results, Result{Err: err})
			continue
		}
		results = append(results, Result{Elem: payload})
	}
	return results, nil
}

func remoteError(class string, msg *ewsxml.Element) error {
	re := &RemoteError{Class: class}
	if code := msg.Find(ewsxml.MNS, "ResponseCode"); code != nil {
		re.Code = code.Text
	}
	if text := msg.Find(ewsxml.MNS, "MessageText"); text != nil {
		re.Message = text.Text
	}
	return re
}
