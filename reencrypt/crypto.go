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

package reencrypt

import (
	"encoding/base64"
	"fmt"

	"github.com/jamesruan/sodium"
)

const BoxAlgorithm = "X25519-XSalsa20-Poly1305"

// boxResult is the §4.4 step 9 output. Ciphertext is left raw so it can
// be passed directly into ephemeral.NewBundle (which base64-encodes it
// once for the wire attachment); Nonce and ServerPublicKey are already
// base64-encoded strings, since both also appear verbatim in the
// Encryption wire struct.
type boxResult struct {
	Ciphertext      []byte
	Nonce           string
	ServerPublicKey string
}

// sealForRequester samples a random nonce and boxes content for
// ephemeralPubKey using the NaCl crypto_box construction: X25519 key
// agreement followed by XSalsa20-Poly1305 authenticated encryption.
// serverKP is the copy descriptor's own box keypair, not a throwaway one:
// the same per-copy secret key that signs the access token also seals
// this response, so a requester who can decrypt the attachment also
// holds the one key that could have issued a valid token for it.
func sealForRequester(content []byte, requesterPubKey [32]byte, serverKP sodium.BoxKP) (boxResult, error) {
	nonce := sodium.BoxNonce{}
	sodium.Randomize(&nonce)

	recipientPK := sodium.BoxPublicKey{Bytes: append([]byte(nil), requesterPubKey[:]...)}

	ciphertext := sodium.Bytes(content).Box(nonce, recipientPK, serverKP.SecretKey)

	return boxResult{
		Ciphertext:      []byte(ciphertext),
		Nonce:           base64.StdEncoding.EncodeToString(nonce.Bytes),
		ServerPublicKey: base64.StdEncoding.EncodeToString(serverKP.PublicKey.Bytes),
	}, nil
}

// decodeRequesterPubKey validates the wire-supplied X25519 public key is
// exactly 32 bytes, per §4.4's request shape.
func decodeRequesterPubKey(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, fmt.Errorf("reencrypt: ephemeralPubKey must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
