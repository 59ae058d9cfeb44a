package document

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/util"
)

// Dir is the directory, relative to the data directory, that holds scraped
// job descriptions.
const Dir = "job-descriptions"

type Metadata struct {
	Title string `yaml:"title"`
	// Description: either Description or OGDescription
	Description *string `yaml:"description,omitempty"`
	Source      string  `yaml:"source"`
	// Key of the posting the document was scraped for.
	Key   string `yaml:"key"`
	Issue string `yaml:"issue"`
	// OGSiteName
	SiteName      *string `yaml:"siteName,omitempty"`
	PublishedTime *string `yaml:"publishedTime,omitempty"`
	ScrapedTime   string  `yaml:"scrapedTime"`
	// Scraper that produced the content, "direct" or "firecrawl".
	Scraper string `yaml:"scraper"`
}

// Document is the full text of a job posting as markdown.
type Document struct {
	// The markdown content of the scraped document.
	Content string
	// Metadata about the document.
	Metadata Metadata
}

var md = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

func (d *Document) HasTitle() bool {
	return d.Metadata.Title != ""
}

// FindTitle returns the metadata title, falling back to the first level 1
// heading of the content. A title found in the content is stored in the
// metadata.
func (d *Document) FindTitle() string {
	// If the title is already set, return it.
	if d.Metadata.Title != "" {
		return d.Metadata.Title
	}

	content := []byte(d.Content)
	doc := md.Parser().Parse(text.NewReader(content))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering && heading.Level == 1 {
			var titleBuilder strings.Builder
			for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
				if t, ok := child.(*ast.Text); ok {
					titleBuilder.Write(t.Segment.Value(content))
				}
			}
			title = strings.TrimSpace(titleBuilder.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	d.Metadata.Title = title
	return title
}

// PlainText renders the content without markdown syntax. Blocks are separated
// by newlines.
func (d *Document) PlainText() string {
	content := []byte(d.Content)
	doc := md.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(content))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(content))
				}
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// Preview returns the first n characters of the plain text, with whitespace
// collapsed.
func (d *Document) Preview(n int) string {
	return util.Truncate(util.CollapseWhitespace(d.PlainText()), n)
}

// Path returns where the document for a posting is stored, relative to the
// data directory: job-descriptions/<year>/<MM-DD>/<key>.md.
func Path(p *job.Posting) string {
	return filepath.Join(Dir, strconv.Itoa(p.Year), p.Date, p.Key+".md")
}

// ToMarkdown converts the Document to a markdown string, with metadata as YAML front matter.
func (d *Document) ToMarkdown() (string, error) {
	// Make sure title is set
	d.FindTitle()

	var builder strings.Builder
	frontMatter, err := yaml.Marshal(d.Metadata)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal metadata to YAML")
	}

	builder.WriteString("---\n")
	builder.Write(frontMatter)
	builder.WriteString("---\n")
	builder.WriteString(d.Content)

	return builder.String(), nil
}

// Save writes the document with its front matter to path, creating parent
// directories. The file is replaced atomically.
func (d *Document) Save(path string) error {
	out, err := d.ToMarkdown()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create document directory")
	}

	return renameio.WriteFile(path, []byte(out), 0o644)
}

// Parse reads a document written by ToMarkdown.
func Parse(data string) (*Document, error) {
	rest, ok := strings.CutPrefix(data, "---\n")
	if !ok {
		return nil, errors.New("missing front matter")
	}

	frontMatter, content, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return nil, errors.New("unterminated front matter")
	}

	doc := &Document{Content: content}
	if err := yaml.Unmarshal([]byte(frontMatter), &doc.Metadata); err != nil {
		return nil, errors.Wrap(err, "failed to parse front matter")
	}

	return doc, nil
}
