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

// Package memory implements storage.BlobStore in memory. It doesn't
// survive restarts; useful for testing to avoid disk or network
// operations.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/clearancevault/core/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store keeps all submitted blobs in memory.
type Store struct {
	mtx   sync.RWMutex
	blobs map[string][]byte
}

var _ storage.BlobStore = (*Store)(nil)

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Put(_ context.Context, r io.Reader, _ map[string]any) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mtx.Lock()
	s.blobs[id] = data
	s.mtx.Unlock()

	return id, nil
}

func (s *Store) Get(_ context.Context, id string, _ map[string]any) (io.ReadCloser, error) {
	s.mtx.RLock()
	data, found := s.blobs[id]
	s.mtx.RUnlock()
	if !found {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, found := s.blobs[id]; !found {
		return storage.ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}

func (s *Store) Close() error {
	log.Info().Msg("closing in-memory blob store")
	return nil
}
