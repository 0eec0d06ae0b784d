package fetchmcp

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/go-shiori/go-readability"
)

// ExtractOptions mirrors the knobs of the readability pass.
type ExtractOptions struct {
	// Debug enables the readability parser's own debug logging.
	Debug bool
	// Markdown converts the extracted HTML to Markdown. When false the
	// cleaned article HTML is returned as is.
	Markdown bool
}

// Extraction is the readable view of one document. Empty strings mean the
// field could not be determined.
type Extraction struct {
	Title       string
	Author      string
	Published   *time.Time
	Description string
	Domain      string
	SiteName    string
	WordCount   int
	ParseTime   time.Duration
	Content     string
}

// Extractor turns a fetched document into its readable content.
type Extractor interface {
	Extract(ctx context.Context, doc *Document, opts ExtractOptions) (*Extraction, error)
}

// ReadabilityExtractor parses HTML with goquery, strips boilerplate, finds the
// main content with go-readability and converts it to Markdown. PDFs are
// converted to text with page headings.
type ReadabilityExtractor struct{}

// NewReadabilityExtractor returns the default Extractor.
func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{}
}

// Extract implements Extractor.
func (e *ReadabilityExtractor) Extract(ctx context.Context, doc *Document, opts ExtractOptions) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		ex  *Extraction
		err error
	)
	switch {
	case doc.IsPDF():
		ex, err = extractPDF(doc)
	case doc.IsHTML() || looksLikeHTML(doc):
		ex, err = extractHTML(doc, opts)
	default:
		text, textErr := doc.Text()
		if textErr != nil {
			return nil, fmt.Errorf("%w: %s (expected HTML, PDF or text)", ErrUnsupportedContentType, doc.ContentType)
		}
		ex = extractText(text)
	}
	if err != nil {
		return nil, err
	}

	ex.Domain = domainOf(doc.URL)
	ex.ParseTime = time.Since(start)
	return ex, nil
}

// looksLikeHTML accepts untyped or text/plain bodies that start like markup.
func looksLikeHTML(doc *Document) bool {
	mt := mediaType(doc.ContentType)
	if mt != "" && mt != "text/plain" {
		return false
	}
	head := bytes.ToLower(bytes.TrimSpace(doc.Body[:min(len(doc.Body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func extractHTML(doc *Document, opts ExtractOptions) (*Extraction, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	dom.Url = doc.URL

	meta := pageMetadata(dom, doc.Body)

	removeBoilerplate(dom)

	// Captured before readability runs, which may rewrite the tree.
	body := dom.Find("body")
	bodyHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	bodyText := strings.TrimSpace(body.Text())
	headings := headingTexts(dom)

	parser := readability.NewParser()
	parser.Debug = opts.Debug

	ex := &Extraction{
		Title:       meta.title,
		Description: meta.description,
		Author:      meta.author,
		SiteName:    meta.siteName,
	}

	var articleHTML, articleText string
	if len(dom.Nodes) > 0 {
		article, err := parser.ParseDocument(dom.Nodes[0], doc.URL)
		if err == nil {
			articleHTML = article.Content
			articleText = strings.TrimSpace(article.TextContent)
			if ex.Title == "" {
				ex.Title = strings.TrimSpace(article.Title)
			} else if heading := consumedHeading(headings, article); heading != "" {
				// Readability drops the heading it adopted as the title. The
				// page title decides here, so the heading stays content.
				articleHTML = "<h2>" + html.EscapeString(heading) + "</h2>" + articleHTML
				articleText = heading + "\n" + articleText
			}
			if ex.Author == "" {
				ex.Author = strings.TrimSpace(article.Byline)
			}
			if ex.Description == "" {
				ex.Description = strings.TrimSpace(article.Excerpt)
			}
			if ex.SiteName == "" {
				ex.SiteName = strings.TrimSpace(article.SiteName)
			}
			ex.Published = article.PublishedTime
		}
	}

	// Readability gives up on pages with too little text; fall back to the
	// stripped body so short pages still convert.
	if articleText == "" {
		articleHTML = bodyHTML
		articleText = bodyText
	}

	ex.WordCount = len(strings.Fields(articleText))

	if !opts.Markdown {
		ex.Content = strings.TrimSpace(articleHTML)
		return ex, nil
	}

	content, err := convertHTMLToMarkdown(strings.NewReader(articleHTML), doc.URL)
	if err != nil {
		return nil, err
	}
	ex.Content = content
	return ex, nil
}

// extractText keeps plain text, JSON and other non-markup bodies as they are.
// There is no title to find.
func extractText(text string) *Extraction {
	content := strings.TrimSpace(text)
	return &Extraction{
		WordCount: len(strings.Fields(content)),
		Content:   content,
	}
}

// removeBoilerplate drops site chrome from dom. Headers and forms are only
// dropped when they do not carry the article; otherwise they are unwrapped so
// neither readability nor the converter discards their children.
func removeBoilerplate(dom *goquery.Document) {
	dom.Find(strings.Join(boilerplateSelectors, ", ")).Remove()

	bodyLen := len(normalizeSpace(dom.Find("body").Text()))
	dom.Find(strings.Join(containerTags, ", ")).Each(func(_ int, s *goquery.Selection) {
		if carriesArticle(s, bodyLen) {
			s.ReplaceWithSelection(s.Contents())
			return
		}
		s.Remove()
	})
}

// carriesArticle reports whether a header or form holds main content: it sits
// inside or around an article or main element, or it is a form holding the
// page heading or at least half of the body text.
func carriesArticle(s *goquery.Selection, bodyLen int) bool {
	if s.Closest("article, main").Length() > 0 || s.Find("article, main").Length() > 0 {
		return true
	}
	if goquery.NodeName(s) != "form" {
		return false
	}
	if s.Find("h1").Length() > 0 {
		return true
	}
	return bodyLen > 0 && 2*len(normalizeSpace(s.Text())) >= bodyLen
}

func extractPDF(doc *Document) (*Extraction, error) {
	text, err := convertPDFToMarkdown(doc.Body)
	if err != nil {
		return nil, err
	}
	return &Extraction{
		Title:     text.Title,
		Author:    text.Author,
		WordCount: len(strings.Fields(text.Content)),
		Content:   text.Content,
	}, nil
}

// headingTexts lists the normalized text of every h1 and h2.
func headingTexts(dom *goquery.Document) []string {
	var out []string
	dom.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// consumedHeading returns the heading readability took as the article title
// and left out of the content, or "".
func consumedHeading(headings []string, article readability.Article) string {
	title := normalizeSpace(article.Title)
	if title == "" || strings.Contains(normalizeSpace(article.TextContent), title) {
		return ""
	}
	for _, h := range headings {
		if h == title {
			return h
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type metadata struct {
	title       string
	description string
	author      string
	siteName    string
}

// pageMetadata reads the document head before boilerplate removal. The
// <title> element wins over og:title; og:description wins over the meta tag.
func pageMetadata(dom *goquery.Document, body []byte) metadata {
	var m metadata
	m.title = strings.TrimSpace(dom.Find("head > title").First().Text())
	m.description = strings.TrimSpace(dom.Find(`meta[name="description"]`).AttrOr("content", ""))
	m.author = strings.TrimSpace(dom.Find(`meta[name="author"]`).AttrOr("content", ""))

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err == nil {
		if m.title == "" {
			m.title = strings.TrimSpace(og.Title)
		}
		if og.Description != "" {
			m.description = strings.TrimSpace(og.Description)
		}
		m.siteName = strings.TrimSpace(og.SiteName)
	}
	return m
}

func domainOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
