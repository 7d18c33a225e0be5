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
	"fmt"
	"os"
	"strings"

	"github.com/clearancevault/core/utils/hv"
)

// SecretProvider resolves a named secret to its raw bytes. Two
// implementations are provided: one backed by environment variables for
// local development, one backed by HashiCorp Vault for production,
// mirroring the teacher's own dev/prod split in utils/hv.
type SecretProvider interface {
	Get(name string) ([]byte, error)
}

// envPrefix is prepended (upper-cased, dots to underscores) to a secret
// name to form its environment variable, e.g. "companySecret" ->
// "CLEARANCEVAULT_COMPANY_SECRET". Values are base64-encoded so binary
// secrets survive the environment intact.
const envPrefix = "CLEARANCEVAULT_"

// EnvSecretProvider resolves secrets from base64-encoded environment
// variables. Intended for local development and tests.
type EnvSecretProvider struct{}

func (EnvSecretProvider) Get(name string) ([]byte, error) {
	envVar := envPrefix + toEnvName(name)
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, fmt.Errorf("config: environment variable %s not set", envVar)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s is not valid base64: %w", envVar, err)
	}
	return decoded, nil
}

func toEnvName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteByte('_')
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// VaultSecretProvider resolves secrets from a HashiCorp Vault path,
// adapting the teacher's HCVaultClient.ReadKey.
type VaultSecretProvider struct {
	client     *hv.HCVaultClient
	secretPath string
}

func NewVaultSecretProvider(mode, secretPath string) (*VaultSecretProvider, error) {
	client, err := hv.NewHCVaultClient(mode)
	if err != nil {
		return nil, fmt.Errorf("config: initializing vault client: %w", err)
	}
	return &VaultSecretProvider{client: client, secretPath: secretPath}, nil
}

func (v *VaultSecretProvider) Get(name string) ([]byte, error) {
	val, err := v.client.ReadKey(v.secretPath, name)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s from vault: %w", name, err)
	}
	decoded, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("config: vault value for %s is not valid base64: %w", name, err)
	}
	return decoded, nil
}
