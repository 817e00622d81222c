package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

const (
	DefaultQuizDir  = "Quiz"
	DefaultErrorDir = "QuizErrors"

	quizSuffix  = "_quiz.json"
	errorSuffix = "_error.json"
)

// FileStore keeps one indented JSON file per record:
// <quizDir>/<id>_quiz.json and <errorDir>/<id>_error.json.
type FileStore struct {
	quizDir  string
	errorDir string
}

func NewFileStore(quizDir, errorDir string) (*FileStore, error) {
	if strings.TrimSpace(quizDir) == "" {
		quizDir = DefaultQuizDir
	}
	if strings.TrimSpace(errorDir) == "" {
		errorDir = DefaultErrorDir
	}

	for _, dir := range []string{quizDir, errorDir} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return nil, utils.WrapIfNotNil(err, dir)
		}
	}
	return &FileStore{quizDir: quizDir, errorDir: errorDir}, nil
}

func (s *FileStore) LoadIndex(ctx context.Context) (*dedup.Index, error) {
	log := logging.NewLogger(ctx)

	paths, err := filepath.Glob(filepath.Join(s.quizDir, "*"+quizSuffix))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})

	idx := dedup.NewIndex()
	for _, path := range paths {
		source := filepath.Base(path)
		record, loadErr := readQuizFile(path)
		if loadErr == nil {
			loadErr = checkIndexable(source, record)
		}
		if loadErr != nil {
			log.WithField("source", source).Warnf("skipping quiz record: %v", loadErr)
			continue
		}

		idx.Put(dedup.Entry{
			ArticleID: strings.TrimSuffix(source, quizSuffix),
			Source:    source,
			Question:  record.Question,
			Embedding: record.Embedding,
		})
	}

	log.Infof("index_loaded store=json records=%d entries=%d", len(paths), idx.Len())
	return idx, nil
}

func readQuizFile(path string) (quiz.QuizRecord, error) {
	source := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return quiz.QuizRecord{}, &MalformedRecordError{Source: source, Reason: "unreadable", Err: err}
	}

	var record quiz.QuizRecord
	err = json.Unmarshal(data, &record)
	if err != nil {
		return quiz.QuizRecord{}, &MalformedRecordError{Source: source, Reason: "invalid json", Err: err}
	}
	return record, nil
}

func (s *FileStore) SaveQuiz(ctx context.Context, articleID string, record quiz.QuizRecord) (string, error) {
	name := articleID + quizSuffix
	err := writeJSONAtomic(filepath.Join(s.quizDir, name), record)
	if err != nil {
		return "", utils.WrapIfNotNil(err, articleID)
	}
	logging.NewLogger(ctx).Debugf("quiz_saved path=%q", filepath.Join(s.quizDir, name))

	// An accepted quiz supersedes any earlier duplicate rejection.
	errorPath := filepath.Join(s.errorDir, articleID+errorSuffix)
	err = os.Remove(errorPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", utils.WrapIfNotNil(err, errorPath)
	}
	return name, nil
}

func (s *FileStore) SaveError(ctx context.Context, articleID string, record quiz.ErrorRecord) error {
	path := filepath.Join(s.errorDir, articleID+errorSuffix)
	err := writeJSONAtomic(path, record)
	if err != nil {
		return utils.WrapIfNotNil(err, articleID)
	}
	logging.NewLogger(ctx).Debugf("error_record_saved path=%q", path)
	return nil
}

func (s *FileStore) HasRecord(_ context.Context, articleID string) (bool, error) {
	for _, path := range []string{
		filepath.Join(s.quizDir, articleID+quizSuffix),
		filepath.Join(s.errorDir, articleID+errorSuffix),
	} {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, utils.WrapIfNotNil(err, path)
		}
	}
	return false, nil
}

func (s *FileStore) Close() error {
	return nil
}

// writeJSONAtomic writes to a temp file in the target directory and renames
// it over path, so readers never see a partial record.
func writeJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return utils.WrapIfNotNil(err)
	}
	return nil
}
