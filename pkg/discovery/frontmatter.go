package discovery

import (
	"bytes"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// ReadDescription returns the description from the YAML frontmatter of the
// markdown file at path, or "" when there is none
func ReadDescription(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return parseDescription(content)
}

func parseDescription(content []byte) string {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return ""
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil || metaData == nil {
		return ""
	}
	description, _ := metaData["description"].(string)
	return strings.TrimSpace(description)
}
