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

// Package fs implements storage.BlobStore against the local filesystem,
// with optional server-side encryption transparent to the core: the
// wrapping key is returned to the caller as part of Put's params and must
// be supplied back on Get, exactly as an opaque external object store
// would behave.
package fs

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clearancevault/core/storage"
	"github.com/clearancevault/core/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store persists blobs as files under root.
type Store struct {
	root string
	sse  bool
}

var _ storage.BlobStore = (*Store)(nil)

// New creates the root directory if needed and returns a filesystem-backed
// blob store. When sse is true, Put transparently encrypts each blob with
// a fresh key returned in the params map under "sseKey"; Get requires that
// same key to be supplied back.
func New(root string, sse bool) (*Store, error) {
	rootDir := utils.AbsPathify(root)
	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		if err := os.MkdirAll(rootDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating blob store root %s: %w", rootDir, err)
		}
	}
	log.Info().Str("path", rootDir).Bool("sse", sse).Msg("initializing filesystem blob store")
	return &Store{root: rootDir, sse: sse}, nil
}

func (s *Store) Put(_ context.Context, r io.Reader, params map[string]any) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	if s.sse {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return "", err
		}
		gcm, err := newGCM(key)
		if err != nil {
			return "", err
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return "", err
		}
		data = gcm.Seal(nonce, nonce, data, nil)
		if params != nil {
			params["sseKey"] = base64.StdEncoding.EncodeToString(key)
		}
	}

	if err := os.WriteFile(filepath.Join(s.root, id), data, 0o600); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Get(_ context.Context, id string, params map[string]any) (io.ReadCloser, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, err
	}

	if s.sse {
		keyStr, _ := params["sseKey"].(string)
		if keyStr == "" {
			return nil, errors.New("storage: missing sseKey for server-side-encrypted blob")
		}
		key, err := base64.StdEncoding.DecodeString(keyStr)
		if err != nil {
			return nil, err
		}
		gcm, err := newGCM(key)
		if err != nil {
			return nil, err
		}
		if len(data) < gcm.NonceSize() {
			return nil, errors.New("storage: corrupt blob, too short for nonce")
		}
		plain, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
		if err != nil {
			return nil, err
		}
		data = plain
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	path := filepath.Join(s.root, id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return storage.ErrBlobNotFound
	}
	return os.Remove(path)
}

func (s *Store) Close() error {
	log.Info().Msg("closing filesystem blob store")
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
