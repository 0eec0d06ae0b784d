package fetchmcp

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

const (
	// maxConcurrency is the maximum concurrency allowed for extracting pages
	maxConcurrency = 32
)

// pageBufferPool is a pool for reusing bytes buffers when processing pages
var pageBufferPool = sync.Pool{
	New: func() any {
		b := bytes.Buffer{}
		b.Grow(1024)
		return &b
	},
}

// pdfText is the text of a PDF plus the document info fields we surface.
type pdfText struct {
	Content string
	Title   string
	Author  string
	Pages   int
}

// isPDFContentType checks if the content type indicates PDF content
func isPDFContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/pdf")
}

// extractPageText extracts text from a PDF page by analyzing character positions
// to properly reconstruct words with spaces between them.
func extractPageText(page pdf.Page, buf *bytes.Buffer) {
	content := page.Content()
	if len(content.Text) == 0 {
		return
	}

	var lastText pdf.Text
	hasLast := false

	for _, t := range content.Text {
		if t.S == "" {
			continue
		}

		if !hasLast {
			buf.WriteString(t.S)
			lastText = t
			hasLast = true
			continue
		}

		// Different line when Y moved by more than a point.
		if abs(t.Y-lastText.Y) > 1 {
			buf.WriteString("\n")
			buf.WriteString(t.S)
			lastText = t
			continue
		}

		// A gap of ~20% of font size between glyphs is a word break.
		gap := t.X - (lastText.X + lastText.W)
		threshold := lastText.FontSize * 0.2
		if threshold < 1 {
			threshold = 1
		}
		if gap > threshold {
			buf.WriteString(" ")
		}

		buf.WriteString(t.S)
		lastText = t
	}
}

// extractPage writes one page into buf. The pdf package panics on some
// malformed content streams; that page is marked and the rest still render.
func extractPage(r *pdf.Reader, pageNum int, buf *bytes.Buffer) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(buf, "[Error: unreadable page: %v]\n", rec)
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		buf.WriteString("[Error: page not found]\n")
		return
	}
	extractPageText(page, buf)
}

// abs returns the absolute value of a float64
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// convertPDFToMarkdown extracts text from a PDF and formats it as markdown
// with "## Page N" headings and separators between pages. The body size is
// already bounded by the fetcher.
func convertPDFToMarkdown(data []byte) (*pdfText, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	out := &pdfText{Pages: pdfReader.NumPage()}
	info := pdfReader.Trailer().Key("Info")
	out.Title = strings.TrimSpace(info.Key("Title").Text())
	out.Author = strings.TrimSpace(info.Key("Author").Text())

	numPages := out.Pages
	if numPages == 0 {
		return out, nil
	}

	numWorkers := min(runtime.GOMAXPROCS(0), numPages, maxConcurrency)

	// Worker i handles a contiguous range of pages so output stays in order.
	pagesPerWorker := numPages / numWorkers
	extraPages := numPages % numWorkers

	var workerBuffers [maxConcurrency]*bytes.Buffer

	page := 1

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := range numWorkers {
		count := pagesPerWorker
		if i < extraPages {
			count++
		}

		go func(workerIdx int, pageStart int, pageEnd int) {
			defer wg.Done()
			workerBuf := pageBufferPool.Get().(*bytes.Buffer)
			workerBuf.Reset()

			for pageNum := pageStart; pageNum < pageEnd; pageNum++ {
				if pageNum > pageStart {
					workerBuf.WriteString("\n\n---\n\n")
				}
				fmt.Fprintf(workerBuf, "## Page %d\n\n", pageNum)

				extractPage(pdfReader, pageNum, workerBuf)
			}

			workerBuffers[workerIdx] = workerBuf
		}(i, page, page+count)

		page += count
	}

	wg.Wait()

	var result strings.Builder
	result.Grow(numWorkers * 1024)

	for i := range numWorkers {
		workerBuf := workerBuffers[i]
		if i > 0 && workerBuf.Len() > 0 {
			result.WriteString("\n\n---\n\n")
		}
		result.Write(workerBuf.Bytes())
		workerBuf.Reset()
		pageBufferPool.Put(workerBuf)
	}

	out.Content = result.String()
	return out, nil
}
