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
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// docxMIME is the MIME type mimetype.Detect reports for .docx files; it
// sniffs the zip/OOXML container signature rather than relying on a file
// extension, which the ingestion boundary can't trust anyway.
const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DetectFormat sniffs data's content type the way the teacher's upload
// path sniffs stream content (utils/streams.StatWriter), so Parse can
// route to the right section parser without trusting a caller-supplied
// content type.
func DetectFormat(data []byte) (SourceFormat, error) {
	mime := mimetype.Detect(data)

	if mime.Is(docxMIME) {
		return SourceDocx, nil
	}

	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/html") || m.Is("text/plain") {
			return SourceHTML, nil
		}
	}

	return "", fmt.Errorf("document: unrecognised content type %q", mime.String())
}

// Parse sniffs data's format and dispatches to ParseHTML or ParseDocx.
// Callers who already know the source format should call that parser
// directly instead.
func Parse(data []byte) (*ParsedDocument, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, newMalformedInput(err)
	}

	switch format {
	case SourceDocx:
		return ParseDocx(data)
	default:
		return ParseHTML(data)
	}
}
