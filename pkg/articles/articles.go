package articles

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

const DefaultPattern = "article_*.md"

// Article is one source text. ID is the file name without its extension.
type Article struct {
	ID   string
	Path string
	Text string
}

type Loader struct {
	dir     string
	pattern string
}

func NewLoader(dir, pattern string) *Loader {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	return &Loader{dir: dir, pattern: pattern}
}

// List returns the matching article paths sorted by file name. A directory
// with no matches yields an empty list.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, "articles directory")
	}
	if !info.IsDir() {
		return nil, utils.WrapIfNotNil(os.ErrInvalid, l.dir+" is not a directory")
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, l.pattern))
	if err != nil {
		return nil, utils.WrapIfNotNil(err, "pattern "+l.pattern)
	}

	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		st, statErr := os.Stat(match)
		if statErr != nil || st.IsDir() {
			continue
		}
		paths = append(paths, match)
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})

	logging.NewLogger(ctx).Debugf("articles_listed dir=%q pattern=%q count=%d", l.dir, l.pattern, len(paths))
	return paths, nil
}

// Load reads a single article. Invalid UTF-8 sequences are dropped.
func (l *Loader) Load(ctx context.Context, path string) (Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Article{}, utils.WrapIfNotNil(err)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		logging.NewLogger(ctx).Warnf("article_invalid_utf8 path=%q", path)
		text = strings.ToValidUTF8(text, "")
	}

	return Article{
		ID:   ID(path),
		Path: path,
		Text: text,
	}, nil
}

// ID derives an article ID from its path.
func ID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
