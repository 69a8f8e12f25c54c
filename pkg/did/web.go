package did

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebResolver resolves did:web identifiers by fetching the subject's
// did.json document over HTTPS, the same outbound-call shape clearnode
// uses for its custody RPC calls: a bounded-timeout *http.Client and a
// typed permanent/transient error split on the response status.
type WebResolver struct {
	Client *http.Client
}

// NewWebResolver builds a resolver whose HTTP requests time out after
// timeout.
func NewWebResolver(timeout time.Duration) *WebResolver {
	return &WebResolver{Client: &http.Client{Timeout: timeout}}
}

func (r *WebResolver) Resolve(ctx context.Context, did string) (*Document, error) {
	docURL, err := webDocumentURL(did)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, &TransientError{DID: did, Err: err}
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransientError{DID: did, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &NotFoundError{DID: did}
	default:
		return nil, &TransientError{DID: did, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransientError{DID: did, Err: err}
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("did: %s: malformed did.json: %w", did, err)
	}
	return &doc, nil
}

// webDocumentURL turns a did:web identifier into the HTTPS URL its
// document is published at: did:web:example.com resolves to
// https://example.com/.well-known/did.json, while
// did:web:example.com:user:alice resolves to
// https://example.com/user/alice/did.json.
func webDocumentURL(did string) (string, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return "", fmt.Errorf("did: %q is not a did:web identifier", did)
	}
	rest := strings.TrimPrefix(did, prefix)
	segments := strings.Split(rest, ":")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("did: %q has no domain segment", did)
	}

	domain, err := url.QueryUnescape(segments[0])
	if err != nil {
		return "", fmt.Errorf("did: %q: invalid domain segment: %w", did, err)
	}

	if len(segments) == 1 {
		return "https://" + domain + "/.well-known/did.json", nil
	}

	pathParts := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		decoded, err := url.QueryUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("did: %q: invalid path segment: %w", did, err)
		}
		pathParts = append(pathParts, decoded)
	}
	return "https://" + domain + "/" + strings.Join(pathParts, "/") + "/did.json", nil
}
