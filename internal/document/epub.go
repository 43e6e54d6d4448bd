package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []epubItem `xml:"manifest>item"`
}

type epubItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

func (i epubItem) isDocument() bool {
	switch strings.ToLower(strings.TrimSpace(i.MediaType)) {
	case "application/xhtml+xml", "text/html":
		return true
	}
	return false
}

// extractEPUB strips the markup of every content document, in manifest order.
func extractEPUB(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}

	raw, err := readZipFile(zr, "META-INF/container.xml")
	if err != nil {
		return "", err
	}
	var container epubContainer
	if err := xml.Unmarshal(raw, &container); err != nil {
		return "", fmt.Errorf("%w: container.xml: %v", ErrCorrupt, err)
	}
	opfPath := packagePath(container)
	if opfPath == "" {
		return "", fmt.Errorf("%w: container.xml names no package document", ErrCorrupt)
	}

	raw, err = readZipFile(zr, opfPath)
	if err != nil {
		return "", err
	}
	var pkg epubPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCorrupt, opfPath, err)
	}

	base := path.Dir(opfPath)
	var out strings.Builder
	for _, item := range pkg.Manifest {
		if !item.isDocument() {
			continue
		}
		href, err := url.PathUnescape(item.Href)
		if err != nil {
			return "", fmt.Errorf("%w: manifest item %q: %v", ErrCorrupt, item.ID, err)
		}
		content, err := readZipFile(zr, path.Join(base, href))
		if err != nil {
			return "", err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrCorrupt, href, err)
		}
		out.WriteString(doc.Text())
		out.WriteByte('\n')
	}
	return out.String(), nil
}

func packagePath(c epubContainer) string {
	for _, rf := range c.Rootfiles {
		if rf.MediaType == "application/oebps-package+xml" && rf.FullPath != "" {
			return rf.FullPath
		}
	}
	for _, rf := range c.Rootfiles {
		if rf.FullPath != "" {
			return rf.FullPath
		}
	}
	return ""
}
