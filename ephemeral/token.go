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

package ephemeral

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/clearancevault/core/utils/jsonw"
)

// ErrInvalidToken is returned by VerifyToken for any malformed, expired,
// or mismatched token, deliberately without detail, to avoid leaking
// which check failed.
var ErrInvalidToken = errors.New("ephemeral: invalid access token")

type tokenPayload struct {
	Eph string `json:"eph"`
	Doc string `json:"doc"`
	Clr int    `json:"clr"`
	Exp int64  `json:"exp"`
	Iat int64  `json:"iat"`
}

// IssueToken produces the compact stateless access token described in
// §4.5: base64url(payload) "." base64url(hmac), HMAC-SHA-256 keyed by the
// copy's own box secret key.
func (d *Descriptor) IssueToken(now time.Time) (string, error) {
	d.mu.Lock()
	payload := tokenPayload{
		Eph: d.EphemeralID,
		Doc: d.DocumentDID,
		Clr: int(d.ClearanceLevelGranted),
		Exp: d.ExpiresAt.Unix(),
		Iat: now.Unix(),
	}
	secretKey := append([]byte(nil), d.KeyPair.SecretKey.Bytes...)
	d.mu.Unlock()

	encoded, err := jsonw.Marshal(payload)
	if err != nil {
		return "", err
	}

	payloadPart := base64.RawURLEncoding.EncodeToString(encoded)

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(payloadPart))
	sig := mac.Sum(nil)
	sigPart := base64.RawURLEncoding.EncodeToString(sig)

	return payloadPart + "." + sigPart, nil
}

// VerifyToken recomputes the HMAC in constant time and checks the eph,
// expiry and document binding, as §4.5 specifies.
func (d *Descriptor) VerifyToken(token string, now time.Time) error {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrInvalidToken
	}

	d.mu.Lock()
	secretKey := append([]byte(nil), d.KeyPair.SecretKey.Bytes...)
	expectedEph := d.EphemeralID
	expectedDoc := d.DocumentDID
	d.mu.Unlock()

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(parts[0]))
	expectedSig := mac.Sum(nil)

	gotSig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal(expectedSig, gotSig) {
		return ErrInvalidToken
	}

	encoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidToken
	}
	var payload tokenPayload
	if err := jsonw.Unmarshal(encoded, &payload); err != nil {
		return ErrInvalidToken
	}

	if payload.Eph != expectedEph {
		return ErrInvalidToken
	}
	if payload.Doc != expectedDoc {
		return ErrInvalidToken
	}
	if payload.Exp*1000 < now.UnixMilli() {
		return ErrInvalidToken
	}

	return nil
}
