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

package document

import (
	"bytes"
	"encoding/hex"

	"github.com/clearancevault/core/utils/fingerprint"
)

// contentHashPrefix is the 16-hex-char prefix of SHA-256(content), used as
// the Section.ContentHash.
func contentHashPrefix(content []byte) string {
	sum, err := fingerprint.GetSha256Fingerprint(bytes.NewReader(content))
	if err != nil {
		// bytes.Reader never fails to read
		panic(err)
	}
	return hex.EncodeToString(sum)[:16]
}
