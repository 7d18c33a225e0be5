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

package revocation

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/clearancevault/core/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	identity.Agent
	statusEntry *identity.StatusListEntry
	statusErr   error
	record      map[string]any
	recordErr   error
}

func (s *stubAgent) GetCredentialStatus(_ context.Context, _ string) (*identity.StatusListEntry, error) {
	return s.statusEntry, s.statusErr
}

func (s *stubAgent) GetCredentialRecord(_ context.Context, _ string) (map[string]any, error) {
	return s.record, s.recordErr
}

func gzipBase64Bitstring(t *testing.T, bits []byte) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(bits)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCheckRevokedBit(t *testing.T) {
	list := gzipBase64Bitstring(t, []byte{0b10000000})
	agent := &stubAgent{statusEntry: &identity.StatusListEntry{StatusListCredential: list, StatusListIndex: 0}}
	client := NewClient(agent)

	result := client.Check(context.Background(), "holder-1", "issuer-1", "cred-1")
	assert.Equal(t, StatusRevoked, result.Status)
	assert.True(t, result.IsRevoked)
}

func TestCheckValidBit(t *testing.T) {
	list := gzipBase64Bitstring(t, []byte{0b00000000})
	agent := &stubAgent{statusEntry: &identity.StatusListEntry{StatusListCredential: list, StatusListIndex: 0}}
	client := NewClient(agent)

	result := client.Check(context.Background(), "holder-1", "issuer-1", "cred-1")
	assert.Equal(t, StatusValid, result.Status)
	assert.False(t, result.IsRevoked)
}

func TestCheckFailsOpenOnTransportError(t *testing.T) {
	agent := &stubAgent{statusErr: errors.New("connection refused")}
	client := NewClient(agent)

	result := client.Check(context.Background(), "holder-1", "issuer-1", "cred-1")
	assert.Equal(t, StatusCheckFailed, result.Status)
	assert.False(t, result.IsRevoked)
}

func TestCheckCachesSuccessfulResult(t *testing.T) {
	list := gzipBase64Bitstring(t, []byte{0b00000000})
	agent := &stubAgent{statusEntry: &identity.StatusListEntry{StatusListCredential: list, StatusListIndex: 0}}
	client := NewClient(agent)

	first := client.Check(context.Background(), "holder-1", "issuer-1", "cred-1")
	agent.statusErr = errors.New("should not be called")
	second := client.Check(context.Background(), "holder-1", "issuer-1", "cred-1")

	assert.Equal(t, first, second)
}

func TestResolveBitOutOfRange(t *testing.T) {
	list := gzipBase64Bitstring(t, []byte{0x00})
	_, err := resolveBit(list, 100)
	assert.Error(t, err)
}
