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
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/clearancevault/core/clearance"
	"github.com/rs/zerolog/log"
)

// No library in the retrieval pack parses OOXML; the zip container and its
// XML parts are read with the standard library (archive/zip,
// encoding/xml), as documented in DESIGN.md.

type docxStylesXML struct {
	Styles []docxStyleXML `xml:"style"`
}

type docxStyleXML struct {
	StyleID string `xml:"styleId,attr"`
	Name    struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

type docxCoreProps struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
	Subject string `xml:"subject"`
}

// ParseDocx implements §4.1 parseDocx: a paragraph-style path (preferred)
// and a structured-content-control path, both applied to the same
// document, plus character-level run styles for inline sections.
func ParseDocx(data []byte) (*ParsedDocument, error) {
	if len(data) == 0 {
		return nil, newEmptyDocument()
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newMalformedInput(err)
	}

	parts := map[string][]byte{}
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml", "word/styles.xml", "docProps/core.xml":
			rc, err := f.Open()
			if err != nil {
				return nil, newMalformedInput(err)
			}
			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, newMalformedInput(err)
			}
			parts[f.Name] = b
		}
	}

	body, ok := parts["word/document.xml"]
	if !ok || len(bytes.TrimSpace(body)) == 0 {
		return nil, newEmptyDocument()
	}

	styleTiers := map[string]clearance.Tier{}
	if stylesBytes, ok := parts["word/styles.xml"]; ok {
		var styles docxStylesXML
		if err := xml.Unmarshal(stylesBytes, &styles); err != nil {
			log.Warn().Err(err).Msg("docx styles.xml unparseable, continuing without paragraph-style mapping")
		} else {
			for _, s := range styles.Styles {
				if tier, err := clearance.ParseLoose(s.Name.Val); err == nil {
					styleTiers[s.StyleID] = tier
				}
			}
		}
	}

	meta := Metadata{SourceFormat: SourceDocx}
	if coreBytes, ok := parts["docProps/core.xml"]; ok {
		var core docxCoreProps
		if err := xml.Unmarshal(coreBytes, &core); err == nil {
			meta.Title = core.Title
			meta.Author = core.Creator
			meta.CreatedDate = core.Created
			meta.Department = core.Subject
		}
	}

	sections, err := extractDocxSections(body, styleTiers)
	if err != nil {
		return nil, newMalformedInput(err)
	}

	parsed := &ParsedDocument{Metadata: meta, Sections: sections}
	parsed.Recompute()
	return parsed, nil
}

// sdtFrame tracks an in-progress structured content control (w:sdt).
type sdtFrame struct {
	tag, alias string
	text       strings.Builder
}

func extractDocxSections(body []byte, styleTiers map[string]clearance.Tier) ([]Section, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var sections []Section
	counter := 0

	var pendingTier clearance.Tier
	var pendingText strings.Builder
	pendingActive := false

	flushPending := func() {
		if pendingActive && pendingTier.Valid() {
			text := strings.TrimSpace(pendingText.String())
			if text != "" {
				counter++
				sections = append(sections, Section{
					SectionID:   fmt.Sprintf("sec-%03d", counter),
					Clearance:   pendingTier,
					Title:       fmt.Sprintf("%s Section", pendingTier.String()),
					TagName:     TagBlock,
					TextLength:  len([]rune(text)),
					ContentHash: contentHashPrefix([]byte(text)),
					Content:     []byte(text),
				})
			}
		}
		pendingActive = false
		pendingTier = clearance.Unknown
		pendingText.Reset()
	}

	var curParaStyle string
	var curParaText strings.Builder
	inParagraph := false

	var curRunStyle string
	var curRunText strings.Builder
	inRun := false

	var sdtStack []*sdtFrame

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch localName(el.Name) {
			case "p":
				inParagraph = true
				curParaStyle = ""
				curParaText.Reset()
			case "pStyle":
				if inParagraph {
					curParaStyle = attrVal(el, "val")
				}
			case "r":
				inRun = true
				curRunStyle = ""
				curRunText.Reset()
			case "rStyle":
				if inRun {
					curRunStyle = attrVal(el, "val")
				}
			case "sdt":
				sdtStack = append(sdtStack, &sdtFrame{})
			case "tag":
				if len(sdtStack) > 0 {
					sdtStack[len(sdtStack)-1].tag = attrVal(el, "val")
				}
			case "alias":
				if len(sdtStack) > 0 {
					sdtStack[len(sdtStack)-1].alias = attrVal(el, "val")
				}
			}
		case xml.CharData:
			if inRun {
				curRunText.Write(el)
			}
		case xml.EndElement:
			switch localName(el.Name) {
			case "r":
				runText := curRunText.String()
				if tier, ok := styleTiers[curRunStyle]; ok && curRunStyle != "" {
					counter++
					sections = append(sections, Section{
						SectionID:   fmt.Sprintf("sec-%03d", counter),
						Clearance:   tier,
						Title:       fmt.Sprintf("%s Section", tier.String()),
						TagName:     TagInline,
						TextLength:  len([]rune(runText)),
						ContentHash: contentHashPrefix([]byte(runText)),
						Content:     []byte(runText),
					})
				} else {
					curParaText.WriteString(runText)
				}
				if len(sdtStack) > 0 {
					sdtStack[len(sdtStack)-1].text.WriteString(runText)
				}
				inRun = false
			case "p":
				tier, ok := styleTiers[curParaStyle]
				for _, f := range sdtStack {
					// A paragraph inside a clearance content control is
					// emitted once, as part of that control's section.
					if name, found := strings.CutPrefix(f.tag, "clearance:"); found {
						if _, perr := clearance.Parse(strings.ToUpper(name)); perr == nil {
							ok = false
						}
					}
				}
				if ok {
					if pendingActive && pendingTier == tier {
						pendingText.WriteString("\n")
						pendingText.WriteString(curParaText.String())
					} else {
						flushPending()
						pendingActive = true
						pendingTier = tier
						pendingText.WriteString(curParaText.String())
					}
				} else {
					flushPending()
				}
				inParagraph = false
			case "sdt":
				frame := sdtStack[len(sdtStack)-1]
				sdtStack = sdtStack[:len(sdtStack)-1]
				if strings.HasPrefix(frame.tag, "clearance:") {
					tierName := strings.TrimPrefix(frame.tag, "clearance:")
					if tier, perr := clearance.Parse(strings.ToUpper(tierName)); perr == nil {
						title := frame.alias
						if title == "" {
							title = fmt.Sprintf("%s Section", tier.String())
						}
						text := strings.TrimSpace(frame.text.String())
						counter++
						sections = append(sections, Section{
							SectionID:   fmt.Sprintf("sec-%03d", counter),
							Clearance:   tier,
							Title:       title,
							TagName:     TagSection,
							TextLength:  len([]rune(text)),
							ContentHash: contentHashPrefix([]byte(text)),
							Content:     []byte(text),
						})
					} else {
						log.Warn().Str("tag", frame.tag).Msg("docx sdt tag not a known clearance tier, skipped")
					}
				}
			}
		}
	}
	flushPending()

	return sections, nil
}

func localName(name xml.Name) string {
	return name.Local
}

func attrVal(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
