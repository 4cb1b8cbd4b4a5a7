package fs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"vsearch/internal/port"
)

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns every regular file under root accepted by the include and
// exclude patterns, sorted by path.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.ShouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if w.shouldInclude(relPath) && !w.ShouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ShouldExclude reports whether a root-relative, slash-separated path matches
// an exclude pattern. Directories are passed with a trailing slash.
func (w *Walker) ShouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileDocument is a corpus document backed by a file on disk. The file is
// read and tokenized only when Tokens is called.
type FileDocument struct {
	path      string
	tokenizer port.Tokenizer
}

func NewFileDocument(path string, tokenizer port.Tokenizer) FileDocument {
	return FileDocument{path: path, tokenizer: tokenizer}
}

func (d FileDocument) ID() string { return d.path }

func (d FileDocument) Tokens() ([]string, error) {
	content, err := ReadFile(d.path)
	if err != nil {
		return nil, err
	}
	return d.tokenizer.Tokenize(content), nil
}

// Documents wraps walked files as lazily loaded documents.
func Documents(files []port.FileInfo, tokenizer port.Tokenizer) []port.Document {
	docs := make([]port.Document, len(files))
	for i, f := range files {
		docs[i] = NewFileDocument(f.Path, tokenizer)
	}
	return docs
}
