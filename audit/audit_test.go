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

package audit

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAppendsLineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	l.Write(Entry{Timestamp: time.Now(), DocumentDID: "did:doc:1", RequesterID: "org-a", AccessGranted: true, CopyID: "c1"})
	l.Write(Entry{Timestamp: time.Now(), DocumentDID: "did:doc:2", RequesterID: "org-b", AccessGranted: false, DenialReason: "CLEARANCE_DENIED"})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestSubscribeReceivesPublishedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Write(Entry{Timestamp: time.Now(), DocumentDID: "did:doc:1", RequesterID: "org-a", AccessGranted: true})

	select {
	case msg := <-ch:
		entry, ok := msg.(Entry)
		require.True(t, ok)
		assert.Equal(t, "did:doc:1", entry.DocumentDID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published audit entry")
	}
}
