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

package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSecrets struct {
	values map[string][]byte
}

func (s stubSecrets) Get(name string) ([]byte, error) {
	return s.values[name], nil
}

func TestLoadAppliesDefaultsAndSecrets(t *testing.T) {
	dir := t.TempDir()
	yamlBody := "registry:\n  persistPath: /tmp/registry.json\nblobStore:\n  root: /tmp/blobs\n  sse: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlBody), 0o600))

	secrets := stubSecrets{values: map[string][]byte{
		"companySecret":      []byte("super-secret"),
		"registrySigningKey": []byte("signing-key"),
	}}

	cfg, err := Load(dir, "config", secrets)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/registry.json", cfg.RegistryPersistPath)
	assert.Equal(t, "/tmp/blobs", cfg.BlobStoreRoot)
	assert.True(t, cfg.BlobStoreSSE)
	assert.Equal(t, DefaultBlobFetchTimeout, cfg.BlobFetchTimeout)
	assert.Equal(t, []byte("super-secret"), cfg.CompanySecret)
}

func TestEnvSecretProviderDecodesBase64(t *testing.T) {
	t.Setenv("CLEARANCEVAULT_COMPANY_SECRET", base64.StdEncoding.EncodeToString([]byte("hunter2")))

	var p EnvSecretProvider
	val, err := p.Get("companySecret")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), val)
}

func TestEnvSecretProviderMissingVar(t *testing.T) {
	var p EnvSecretProvider
	_, err := p.Get("doesNotExist")
	assert.Error(t, err)
}
