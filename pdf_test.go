package fetchmcp

import (
	"os"
	"strings"
	"testing"
)

func Test_isPDFContentType(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/pdf", true},
		{"application/pdf; charset=binary", true},
		{"APPLICATION/PDF", true},
		{"text/html", false},
		{"application/json", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			result := isPDFContentType(tt.contentType)
			if result != tt.expected {
				t.Errorf("isPDFContentType(%q) = %v, want %v", tt.contentType, result, tt.expected)
			}
		})
	}
}

func Test_convertPDFToMarkdown(t *testing.T) {
	data, err := os.ReadFile("testdata/test.pdf")
	if err != nil {
		t.Fatalf("failed to read test PDF: %v", err)
	}

	result, err := convertPDFToMarkdown(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", result.Pages)
	}
	if result.Title != "Test Document" {
		t.Errorf("expected title %q, got %q", "Test Document", result.Title)
	}
	if result.Author != "Jane Doe" {
		t.Errorf("expected author %q, got %q", "Jane Doe", result.Author)
	}

	for _, want := range []string{"## Page 1", "## Page 2", "---", "Hello World", "Second Page"} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("expected output to contain %q, got %q", want, result.Content)
		}
	}

	if strings.Index(result.Content, "Hello World") > strings.Index(result.Content, "Second Page") {
		t.Errorf("expected pages in order, got %q", result.Content)
	}
}

func Test_convertPDFToMarkdown_Invalid(t *testing.T) {
	_, err := convertPDFToMarkdown([]byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected error for invalid PDF, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse PDF") {
		t.Errorf("expected 'failed to parse PDF' error, got %q", err.Error())
	}
}
