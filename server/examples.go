package server

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// DefaultExamplesLang is used when the request does not specify a language.
const DefaultExamplesLang = "en"

// Example is a canned prompt shown by the chat UI.
type Example struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) getExamples(c echo.Context) error {
	if s.cfg.ExamplesDir == "" {
		return c.JSON(http.StatusOK, map[string]any{"examples": []Example{}})
	}

	lang := c.QueryParam("lang")
	if lang == "" {
		lang = DefaultExamplesLang
	}
	// language codes only, the path must stay inside the examples dir
	if strings.ContainsAny(lang, "/\\.") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lang")
	}

	examples, err := LoadExamples(s.cfg.ExamplesDir, lang)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"examples": examples})
}

// LoadExamples reads the example prompts for a language. Each file is one
// example; the first line is its title, the rest is the prompt text.
func LoadExamples(dir, lang string) ([]Example, error) {
	paths, err := filepath.Glob(filepath.Join(dir, lang, "*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	examples := []Example{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		title, content, _ := strings.Cut(string(data), "\n")
		title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), "#"))
		content = strings.TrimSpace(content)
		if title == "" || content == "" {
			continue
		}
		examples = append(examples, Example{
			Title:   title,
			Content: content,
		})
	}
	return examples, nil
}
