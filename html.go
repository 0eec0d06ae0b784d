package fetchmcp

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// boilerplateTags contains HTML tags that typically contain non-content elements
var boilerplateTags = []string{
	"nav",
	"footer",
	"aside",
	"script",
	"style",
	"noscript",
	"button",
	"iframe",
	"template",
	"dialog",
}

// containerTags usually hold site chrome, but some pages wrap the whole
// article in a form (ASP.NET WebForms) or put the headline in an article
// header. They are pruned selectively before the readability pass.
var containerTags = []string{
	"header",
	"form",
}

// boilerplateSelectors are removed from the DOM before the readability pass.
// They match ARIA landmarks and common ad and cookie containers that are not
// marked up with semantic tags.
var boilerplateSelectors = append([]string{
	`[role="navigation"]`,
	`[role="banner"]`,
	`[role="contentinfo"]`,
	`[role="complementary"]`,
	`[aria-hidden="true"]`,
	`.advertisement`,
	`.ads`,
	`.ad-container`,
	`.cookie-banner`,
	`#cookie-consent`,
}, boilerplateTags...)

// removeTagsPlugin is a 'converter' plugin that registers tags to be removed during conversion
type removeTagsPlugin struct {
	tags []string
}

func (p *removeTagsPlugin) Name() string {
	return "remove-tags"
}

func (p *removeTagsPlugin) Init(conv *converter.Converter) error {
	for _, tag := range p.tags {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}
	return nil
}

// htmlConverter turns readability output or, as a fallback, whole pages into
// Markdown. Boilerplate tags are dropped in both cases.
var htmlConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		&removeTagsPlugin{tags: slices.Concat(boilerplateTags, containerTags)},
	),
)

// convertHTMLToMarkdown converts HTML content to Markdown, removing non-content elements
// and resolving relative URLs to absolute using the provided base URL.
func convertHTMLToMarkdown(r io.Reader, baseURL *url.URL) (string, error) {
	// Build domain string for absolute URL resolution
	domain := fmt.Sprintf("%s://%s", baseURL.Scheme, baseURL.Host)

	markdownBytes, err := htmlConverter.ConvertReader(r, converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	return cleanupMarkdown(string(markdownBytes)), nil
}

// cleanupMarkdown removes excessive blank lines from the markdown output
func cleanupMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			// Allow at most one blank line between content
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
