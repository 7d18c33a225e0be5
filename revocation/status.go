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

// Package revocation determines whether a holder's security-clearance
// credential has been revoked by its issuer, consulting the identity
// platform's StatusList2021 bitstring. Transport failures fail open: the
// access-grant pipeline decides policy, this client only reports what it
// could and couldn't determine.
package revocation

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/clearancevault/core/config"
	"github.com/clearancevault/core/identity"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Status is the outcome of a revocation check, never an error by itself:
// CheckFailed is a valid, expected outcome under fail-open policy.
type Status string

const (
	StatusRevoked            Status = "REVOKED"
	StatusValid              Status = "VALID"
	StatusNotFound           Status = "NOT_FOUND"
	StatusCheckFailed        Status = "CHECK_FAILED"
	StatusInvalidStatusList  Status = "INVALID_STATUS_LIST"
)

const (
	cacheTTL           = 60 * time.Second
	cacheCapacity      = 4096
	credentialListSize = 100
	securityClearance  = "SecurityClearance"
)

// Result is what the re-encryption pipeline consults for step 6.
type Result struct {
	IsRevoked bool      `json:"isRevoked"`
	Status    Status    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	Details   string    `json:"details,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type cacheKey struct {
	holderID string
	issuerID string
}

// Client queries an identity.Agent for credential revocation status,
// caching successful lookups for up to 60 seconds.
type Client struct {
	agent identity.Agent
	cache *lru.LRU[cacheKey, Result]

	// StatusQueryTimeout bounds the status-list lookup against the
	// identity agent, per §5. Defaults to config.DefaultStatusQueryTimeout;
	// callers that loaded a config.Config may override it directly.
	StatusQueryTimeout time.Duration
}

func NewClient(agent identity.Agent) *Client {
	return &Client{
		agent:              agent,
		cache:              lru.NewLRU[cacheKey, Result](cacheCapacity, nil, cacheTTL),
		StatusQueryTimeout: config.DefaultStatusQueryTimeout,
	}
}

// Check determines revocation status for holderID's credential issued by
// issuerID. If credentialID is non-empty, the status-list entry for that
// specific credential is consulted; otherwise the agent's single credential
// record for the "holderID|issuerID" key is used, provided its type is
// empty or SecurityClearance. No credential list is queried, so no
// choice between several credentials of the pair is made.
func (c *Client) Check(ctx context.Context, holderID, issuerID, credentialID string) Result {
	key := cacheKey{holderID: holderID, issuerID: issuerID}
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	result := c.checkUncached(ctx, holderID, issuerID, credentialID)
	if result.Status == StatusRevoked || result.Status == StatusValid {
		c.cache.Add(key, result)
	}
	return result
}

func (c *Client) checkUncached(ctx context.Context, holderID, issuerID, credentialID string) Result {
	now := time.Now()

	if credentialID == "" {
		var err error
		credentialID, err = c.findLatestCredential(ctx, holderID, issuerID)
		if err != nil {
			log.Warn().Err(err).Str("holderId", holderID).Str("issuerId", issuerID).
				Msg("revocation: unable to locate credential, failing open")
			return Result{IsRevoked: false, Status: StatusCheckFailed, CheckedAt: now, Error: err.Error()}
		}
		if credentialID == "" {
			return Result{IsRevoked: false, Status: StatusNotFound, CheckedAt: now}
		}
	}

	queryCtx := ctx
	if c.StatusQueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, c.StatusQueryTimeout)
		defer cancel()
	}

	entry, err := c.agent.GetCredentialStatus(queryCtx, credentialID)
	if err != nil {
		log.Warn().Err(err).Str("credentialId", credentialID).Msg("revocation: status lookup failed, failing open")
		return Result{IsRevoked: false, Status: StatusCheckFailed, CheckedAt: now, Error: err.Error()}
	}

	revoked, err := resolveBit(entry.StatusListCredential, entry.StatusListIndex)
	if err != nil {
		log.Warn().Err(err).Str("credentialId", credentialID).Msg("revocation: malformed status list, failing open")
		return Result{IsRevoked: false, Status: StatusInvalidStatusList, CheckedAt: now, Error: err.Error()}
	}

	status := StatusValid
	if revoked {
		status = StatusRevoked
	}
	return Result{IsRevoked: revoked, Status: status, CheckedAt: now}
}

func (c *Client) findLatestCredential(ctx context.Context, holderID, issuerID string) (string, error) {
	_ = credentialListSize // not applied: the agent returns one record for the pair
	record, err := c.agent.GetCredentialRecord(ctx, holderID+"|"+issuerID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	credType, _ := record["type"].(string)
	if credType != "" && credType != securityClearance {
		return "", nil
	}
	id, _ := record["credentialId"].(string)
	return id, nil
}

// resolveBit fetches and decodes a StatusList2021 bitstring encoded as a
// base64 string (the identity agent returns the encodedList directly in
// the StatusListCredential field for this deployment's simplified
// transport), gzip-decompresses it, and reads the bit at index.
func resolveBit(encodedList string, index int) (bool, error) {
	if index < 0 {
		return false, fmt.Errorf("revocation: negative status list index %d", index)
	}

	compressed, err := base64.StdEncoding.DecodeString(encodedList)
	if err != nil {
		return false, fmt.Errorf("revocation: decoding status list: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return false, fmt.Errorf("revocation: ungzipping status list: %w", err)
	}
	defer gz.Close()

	bitstring, err := io.ReadAll(gz)
	if err != nil {
		return false, fmt.Errorf("revocation: reading status list: %w", err)
	}

	byteIdx := index / 8
	if byteIdx >= len(bitstring) {
		return false, fmt.Errorf("revocation: status list index %d out of range (%d bytes)", index, len(bitstring))
	}
	bitIdx := 7 - (index % 8)
	return (bitstring[byteIdx]>>bitIdx)&1 == 1, nil
}
