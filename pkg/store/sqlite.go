package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultSQLitePath = "quizpipe.db"

	sqliteSourcePrefix = "quizzes/"
)

// SQLiteStore keeps quiz and error records in two tables keyed by article ID.
// Options and embeddings are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultSQLitePath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, "open database")
	}
	// One connection keeps in-memory databases consistent across calls.
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		_ = db.Close()
		return nil, utils.WrapIfNotNil(err, "ping database")
	}

	s := &SQLiteStore{db: db}
	err = s.createTables()
	if err != nil {
		_ = db.Close()
		return nil, utils.WrapIfNotNil(err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			article_id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			confidence_score REAL NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_errors (
			article_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			similarity_score REAL NOT NULL,
			new_question TEXT NOT NULL,
			existing_question TEXT NOT NULL,
			matched_with TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return utils.WrapIfNotNil(err, "create tables")
		}
	}
	return nil
}

func (s *SQLiteStore) LoadIndex(ctx context.Context) (*dedup.Index, error) {
	log := logging.NewLogger(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT article_id, question, options, correct_answer, confidence_score, embedding
		FROM quizzes ORDER BY article_id`)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer rows.Close()

	idx := dedup.NewIndex()
	total := 0
	for rows.Next() {
		total++
		var (
			articleID     string
			record        quiz.QuizRecord
			optionsJSON   string
			embeddingJSON string
		)
		err = rows.Scan(&articleID, &record.Question, &optionsJSON, &record.CorrectAnswer, &record.ConfidenceScore, &embeddingJSON)
		if err != nil {
			return nil, utils.WrapIfNotNil(err)
		}

		source := sqliteSourcePrefix + articleID
		loadErr := decodeQuizColumns(source, optionsJSON, embeddingJSON, &record)
		if loadErr == nil {
			loadErr = checkIndexable(source, record)
		}
		if loadErr != nil {
			log.WithField("source", source).Warnf("skipping quiz record: %v", loadErr)
			continue
		}

		idx.Put(dedup.Entry{
			ArticleID: articleID,
			Source:    source,
			Question:  record.Question,
			Embedding: record.Embedding,
		})
	}
	err = rows.Err()
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	log.Infof("index_loaded store=sqlite records=%d entries=%d", total, idx.Len())
	return idx, nil
}

func decodeQuizColumns(source, optionsJSON, embeddingJSON string, record *quiz.QuizRecord) error {
	err := json.Unmarshal([]byte(optionsJSON), &record.Options)
	if err != nil {
		return &MalformedRecordError{Source: source, Reason: "invalid options column", Err: err}
	}
	err = json.Unmarshal([]byte(embeddingJSON), &record.Embedding)
	if err != nil {
		return &MalformedRecordError{Source: source, Reason: "invalid embedding column", Err: err}
	}
	return nil
}

func (s *SQLiteStore) SaveQuiz(ctx context.Context, articleID string, record quiz.QuizRecord) (string, error) {
	options, err := json.Marshal(record.Options)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	embedding, err := json.Marshal(record.Embedding)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", utils.WrapIfNotNil(err, articleID)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quizzes (article_id, question, options, correct_answer, confidence_score, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET
			question = excluded.question,
			options = excluded.options,
			correct_answer = excluded.correct_answer,
			confidence_score = excluded.confidence_score,
			embedding = excluded.embedding,
			created_at = excluded.created_at`,
		articleID, record.Question, string(options), record.CorrectAnswer, record.ConfidenceScore, string(embedding), time.Now().UTC(),
	)
	if err != nil {
		return "", utils.WrapIfNotNil(err, articleID)
	}

	// An accepted quiz supersedes any earlier duplicate rejection.
	_, err = tx.ExecContext(ctx, `DELETE FROM quiz_errors WHERE article_id = ?`, articleID)
	if err != nil {
		return "", utils.WrapIfNotNil(err, articleID)
	}

	err = tx.Commit()
	if err != nil {
		return "", utils.WrapIfNotNil(err, articleID)
	}
	return sqliteSourcePrefix + articleID, nil
}

func (s *SQLiteStore) SaveError(ctx context.Context, articleID string, record quiz.ErrorRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_errors (article_id, status, reason, similarity_score, new_question, existing_question, matched_with, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			similarity_score = excluded.similarity_score,
			new_question = excluded.new_question,
			existing_question = excluded.existing_question,
			matched_with = excluded.matched_with,
			created_at = excluded.created_at`,
		articleID, record.Status, record.Reason, record.SimilarityScore, record.NewQuestion, record.ExistingQuestion, record.MatchedWith, time.Now().UTC(),
	)
	return utils.WrapIfNotNil(err, articleID)
}

// loadError returns the stored error record for articleID, if any.
func (s *SQLiteStore) loadError(ctx context.Context, articleID string) (quiz.ErrorRecord, bool, error) {
	var record quiz.ErrorRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT status, reason, similarity_score, new_question, existing_question, matched_with
		FROM quiz_errors WHERE article_id = ?`, articleID,
	).Scan(&record.Status, &record.Reason, &record.SimilarityScore, &record.NewQuestion, &record.ExistingQuestion, &record.MatchedWith)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.ErrorRecord{}, false, nil
	}
	if err != nil {
		return quiz.ErrorRecord{}, false, utils.WrapIfNotNil(err, articleID)
	}
	return record, true, nil
}

func (s *SQLiteStore) HasRecord(ctx context.Context, articleID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM quizzes WHERE article_id = ?) + (SELECT COUNT(*) FROM quiz_errors WHERE article_id = ?)`,
		articleID, articleID,
	).Scan(&count)
	if err != nil {
		return false, utils.WrapIfNotNil(err, articleID)
	}
	return count > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
