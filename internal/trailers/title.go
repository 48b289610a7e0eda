package trailers

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type nfoDocument struct {
	XMLName       xml.Name
	Text          string `xml:",chardata"`
	OriginalTitle string `xml:"originaltitle"`
}

// ReadOriginalTitle returns the originaltitle recorded in an .nfo file. The
// element may be the document root or a child of <movie>. An empty string
// with a nil error means the file exists but carries no title.
func ReadOriginalTitle(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc nfoDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if doc.XMLName.Local == "originaltitle" {
		return strings.TrimSpace(doc.Text), nil
	}
	return strings.TrimSpace(doc.OriginalTitle), nil
}

// ResolveTitle picks the search title for a movie file: the sibling .nfo
// originaltitle when readable, otherwise a cleaned form of the file name.
// The second return reports which source was used ("nfo" or "filename").
func ResolveTitle(moviePath string) (string, string, error) {
	nfo := strings.TrimSuffix(moviePath, filepath.Ext(moviePath)) + ".nfo"
	title, err := ReadOriginalTitle(nfo)
	switch {
	case err == nil && title != "":
		return title, "nfo", nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return titleFromFileName(moviePath), "filename", err
	}
	return titleFromFileName(moviePath), "filename", nil
}

func titleFromFileName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' || r == '&':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return base
	}
	return cases.Title(language.Und).String(title)
}
