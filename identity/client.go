// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/clearancevault/core/utils/security"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// HTTPClient talks to a remote IdentityAgent service over HTTP, retrying
// transient failures with exponential backoff. It accepts the
// https+insecure scheme for development deployments.
type HTTPClient struct {
	baseURL string
	rc      *retryablehttp.Client
}

var _ Agent = (*HTTPClient)(nil)

func NewHTTPClient(serviceURL string) (*HTTPClient, error) {
	resolvedURL, httpClient, tlsConfig, err := security.CreateHTTPClient(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("identity: configuring client: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	if tlsConfig != nil {
		rc.HTTPClient = httpClient
	}

	return &HTTPClient{baseURL: resolvedURL, rc: rc}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.rc.Do(req)
	if err != nil {
		return fmt.Errorf("identity: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("identity agent returned error")
		return fmt.Errorf("identity: %s returned status %d", path, resp.StatusCode)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return sonic.Unmarshal(respBody, out)
}

func (c *HTTPClient) CreateConnection(ctx context.Context, invitationURL string) (*Connection, error) {
	var conn Connection
	err := c.do(ctx, http.MethodPost, "/connections", map[string]string{"invitationUrl": invitationURL}, &conn)
	return &conn, err
}

func (c *HTTPClient) AcceptInvitation(ctx context.Context, invitation []byte) (*Connection, error) {
	var conn Connection
	err := c.do(ctx, http.MethodPost, "/connections/accept", map[string]string{"invitation": string(invitation)}, &conn)
	return &conn, err
}

func (c *HTTPClient) GetConnection(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	err := c.do(ctx, http.MethodGet, "/connections/"+connectionID, nil, &conn)
	return &conn, err
}

func (c *HTTPClient) CreateDID(ctx context.Context, method string) (*Document, error) {
	var doc Document
	err := c.do(ctx, http.MethodPost, "/dids", map[string]string{"method": method}, &doc)
	return &doc, err
}

func (c *HTTPClient) PublishDID(ctx context.Context, doc *Document) error {
	return c.do(ctx, http.MethodPost, "/dids/"+doc.ID+"/publish", doc, nil)
}

func (c *HTTPClient) GetDIDStatus(ctx context.Context, did string) (*Document, error) {
	var doc Document
	err := c.do(ctx, http.MethodGet, "/dids/"+did, nil, &doc)
	return &doc, err
}

func (c *HTTPClient) OfferCredential(ctx context.Context, connectionID, schemaID string, values map[string]any) (string, error) {
	var result struct {
		OfferID string `json:"offerId"`
	}
	payload := map[string]any{"connectionId": connectionID, "schemaId": schemaID, "values": values}
	err := c.do(ctx, http.MethodPost, "/credentials/offer", payload, &result)
	return result.OfferID, err
}

func (c *HTTPClient) AcceptOffer(ctx context.Context, offerID string) (string, error) {
	var result struct {
		CredentialID string `json:"credentialId"`
	}
	err := c.do(ctx, http.MethodPost, "/credentials/offer/"+offerID+"/accept", nil, &result)
	return result.CredentialID, err
}

func (c *HTTPClient) GetCredentialRecord(ctx context.Context, credentialID string) (map[string]any, error) {
	var result map[string]any
	err := c.do(ctx, http.MethodGet, "/credentials/"+credentialID, nil, &result)
	return result, err
}

func (c *HTTPClient) GetCredentialStatus(ctx context.Context, credentialID string) (*StatusListEntry, error) {
	var entry StatusListEntry
	err := c.do(ctx, http.MethodGet, "/credentials/"+credentialID+"/status", nil, &entry)
	return &entry, err
}
