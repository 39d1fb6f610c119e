package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/lu4p/cat"
)

const (
	contentTypesPart  = "[Content_Types].xml"
	docxDefaultPart   = "word/document.xml"
	docxMainType      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	openDocumentPart  = "content.xml"
	pptxSlidePrefix   = "ppt/slides/slide"
	maxMarkupPartSize = 64 << 20
)

var errPartNotFound = errors.New("part not found")

// textRules says which XML elements (by local name) carry text and which end a paragraph.
type textRules struct {
	text  map[string]bool
	block map[string]bool
}

var (
	ooxmlRules = textRules{
		text:  map[string]bool{"t": true},
		block: map[string]bool{"p": true},
	}
	openDocumentRules = textRules{
		text:  map[string]bool{"p": true, "h": true},
		block: map[string]bool{"p": true, "h": true},
	}
)

// collectText streams the XML and returns the character data inside text elements, one line
// per block element.
func collectText(r io.Reader, rules textRules) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	var lines []string
	var line strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rules.text[t.Name.Local] {
				depth++
			}
		case xml.EndElement:
			if rules.text[t.Name.Local] && depth > 0 {
				depth--
			}
			if rules.block[t.Name.Local] {
				if s := strings.TrimSpace(line.String()); s != "" {
					lines = append(lines, s)
				}
				line.Reset()
			}
		case xml.CharData:
			if depth > 0 {
				line.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(line.String()); s != "" {
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n"), nil
}

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip package: %w", err)
	}
	return zr, nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxMarkupPartSize))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", errPartNotFound, name)
}

// docxMainPart finds the main document part from [Content_Types].xml, falling back to the
// conventional word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	data, err := readPart(zr, contentTypesPart)
	if err != nil {
		return docxDefaultPart
	}
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.Unmarshal(data, &types); err != nil {
		return docxDefaultPart
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxMainType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxDefaultPart
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	data, err := readPart(zr, docxMainPart(zr))
	if err != nil {
		return "", err
	}
	return collectText(bytes.NewReader(data), ooxmlRules)
}

// extractPPTX returns slide text in slide order (slide2 before slide10).
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if path.Dir(f.Name) != path.Dir(pptxSlidePrefix) || !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, pptxSlidePrefix), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var parts []string
	for _, s := range slides {
		data, err := readPart(zr, s.file.Name)
		if err != nil {
			return "", err
		}
		text, err := collectText(bytes.NewReader(data), ooxmlRules)
		if err != nil {
			return "", fmt.Errorf("%s: %w", s.file.Name, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractOpenDocument handles .odt, .odp, and .ods; all keep their body in content.xml.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	data, err := readPart(zr, openDocumentPart)
	if err != nil {
		return "", err
	}
	return collectText(bytes.NewReader(data), openDocumentRules)
}

func extractRTF(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("read rtf: %w", err)
	}
	return strings.TrimSpace(text), nil
}
