package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/store"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"github.com/stretchr/testify/suite"
)

type stubGenerator struct {
	errs  map[string]error
	block bool
	calls []string
}

func (g *stubGenerator) Generate(ctx context.Context, article articles.Article) (quiz.Candidate, model.GenerationMetadata, error) {
	g.calls = append(g.calls, article.ID)
	if g.block {
		<-ctx.Done()
		return quiz.Candidate{}, nil, &quiz.GenerationError{ArticleID: article.ID, Err: ctx.Err()}
	}
	if err := g.errs[article.ID]; err != nil {
		return quiz.Candidate{}, nil, &quiz.GenerationError{ArticleID: article.ID, Err: err}
	}
	return quiz.Candidate{
		Question:        "Q " + article.Text,
		Options:         []string{"a", "b", "c", "d"},
		CorrectAnswer:   "a",
		ConfidenceScore: 0.9,
	}, model.GenerationMetadata{}, nil
}

// stubEmbedder maps question text to a fixed vector.
type stubEmbedder struct {
	vectors map[string][]float64
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (model.EmbeddingVector, model.GenerationMetadata, error) {
	vector, ok := e.vectors[text]
	if !ok {
		return nil, nil, &quiz.EmbeddingError{Err: fmt.Errorf("no vector for %q", text)}
	}
	return vector, nil, nil
}

type PipelineSuite struct {
	suite.Suite
	ctx       context.Context
	root      string
	fileStore *store.FileStore
	generator *stubGenerator
	embedder  *stubEmbedder
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.root = s.T().TempDir()
	s.Require().NoError(os.Mkdir(filepath.Join(s.root, "articles"), 0o755))

	var err error
	s.fileStore, err = store.NewFileStore(filepath.Join(s.root, "Quiz"), filepath.Join(s.root, "QuizErrors"))
	s.Require().NoError(err)

	s.generator = &stubGenerator{errs: map[string]error{}}
	s.embedder = &stubEmbedder{vectors: map[string][]float64{
		"Q A": {1, 0, 0},
		"Q B": {0, 1, 0},
		"Q C": {0, 1, 0.1},
	}}
}

func (s *PipelineSuite) writeArticle(id, text string) {
	path := filepath.Join(s.root, "articles", id+".md")
	s.Require().NoError(os.WriteFile(path, []byte(text), 0o644))
}

func (s *PipelineSuite) newPipeline(cfg Config) *Pipeline {
	p, err := New(cfg, Dependencies{
		Articles:  articles.NewLoader(filepath.Join(s.root, "articles"), ""),
		Generator: s.generator,
		Embedder:  s.embedder,
		Store:     s.fileStore,
	})
	s.Require().NoError(err)
	return p
}

func (s *PipelineSuite) writeABC() {
	s.writeArticle("article_1", "A")
	s.writeArticle("article_2", "B")
	s.writeArticle("article_3", "C")
}

func (s *PipelineSuite) TestOrderSensitiveDuplicateRejected() {
	s.writeABC()
	var progress []State
	started := 0

	summary, err := s.newPipeline(Config{
		OnStart:    func(total int) { started = total },
		OnProgress: func(o Outcome) { progress = append(progress, o.State) },
	}).Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(3, started)

	s.NotEmpty(summary.RunID)
	s.Equal(3, summary.Total)
	s.Equal(2, summary.Persisted)
	s.Equal(1, summary.Rejected)
	s.Equal([]State{StatePersisted, StatePersisted, StateRejected}, progress)

	rejected := summary.Outcomes[2]
	s.Equal("article_3", rejected.ArticleID)
	s.Equal("article_2_quiz.json", rejected.MatchedWith)
	s.InDelta(1/1.00498756, rejected.Similarity, 1e-6)

	s.FileExists(filepath.Join(s.root, "Quiz", "article_1_quiz.json"))
	s.FileExists(filepath.Join(s.root, "Quiz", "article_2_quiz.json"))
	s.NoFileExists(filepath.Join(s.root, "Quiz", "article_3_quiz.json"))
	s.FileExists(filepath.Join(s.root, "QuizErrors", "article_3_error.json"))

	s.assertPersistedAreDistinct()
}

func (s *PipelineSuite) TestRerunSkipsProcessedArticles() {
	s.writeABC()
	_, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.generator.calls = nil

	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, summary.Skipped)
	s.Empty(s.generator.calls)
}

func (s *PipelineSuite) TestRegenerateExcludesOwnEntry() {
	s.writeArticle("article_1", "A")
	_, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)

	summary, err := s.newPipeline(Config{Regenerate: true}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Persisted)

	idx, err := s.fileStore.LoadIndex(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, idx.Len())
}

func (s *PipelineSuite) TestRegeneratedRejectionBecomesQuiz() {
	s.writeABC()
	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Rejected)
	errorPath := filepath.Join(s.root, "QuizErrors", "article_3_error.json")
	s.FileExists(errorPath)

	s.embedder.vectors["Q C"] = []float64{0, 0, 1}
	summary, err = s.newPipeline(Config{Regenerate: true}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, summary.Persisted)
	s.Zero(summary.Rejected)

	s.FileExists(filepath.Join(s.root, "Quiz", "article_3_quiz.json"))
	s.NoFileExists(errorPath)
	s.assertPersistedAreDistinct()
}

func (s *PipelineSuite) TestNonFiniteEmbeddingFailsArticle() {
	s.writeArticle("article_1", "A")
	s.writeArticle("article_2", "B")
	s.embedder.vectors["Q B"] = []float64{math.NaN(), 0, 0}

	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Persisted)
	s.Equal(1, summary.Failed)
	s.Zero(summary.Rejected)
	s.Equal("dedup", summary.Outcomes[1].Stage)

	var degenerate *dedup.DegenerateVectorError
	s.ErrorAs(summary.Outcomes[1].Err, &degenerate)
	s.NoFileExists(filepath.Join(s.root, "QuizErrors", "article_2_error.json"))
}

func (s *PipelineSuite) TestExistingStoreIsCompared() {
	_, err := s.fileStore.SaveQuiz(s.ctx, "article_0", quiz.QuizRecord{
		Question:  "old",
		Options:   []string{"a", "b", "c", "d"},
		Embedding: []float64{1, 0, 0},
	})
	s.Require().NoError(err)
	s.writeArticle("article_1", "A")

	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Rejected)
	s.Equal("article_0_quiz.json", summary.Outcomes[0].MatchedWith)
}

func (s *PipelineSuite) TestFailuresDoNotStopTheBatch() {
	s.writeABC()
	s.writeArticle("article_4", "D")
	s.generator.errs["article_1"] = errors.New("upstream unavailable")
	s.embedder.vectors["Q D"] = []float64{0, 0, 0}

	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, summary.Total)
	s.Equal(2, summary.Failed)
	s.Equal(1, summary.Persisted)
	s.Equal(1, summary.Rejected)

	var genErr *quiz.GenerationError
	s.ErrorAs(summary.Outcomes[0].Err, &genErr)
	s.Equal("generate", summary.Outcomes[0].Stage)

	var degenerate *dedup.DegenerateVectorError
	s.ErrorAs(summary.Outcomes[3].Err, &degenerate)

	has, err := s.fileStore.HasRecord(s.ctx, "article_1")
	s.Require().NoError(err)
	s.False(has)
}

func (s *PipelineSuite) TestEmbeddingFailure() {
	s.writeArticle("article_1", "unknown")

	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Failed)
	var embErr *quiz.EmbeddingError
	s.ErrorAs(summary.Outcomes[0].Err, &embErr)
}

func (s *PipelineSuite) TestRequestTimeoutIsGenerationError() {
	s.writeArticle("article_1", "A")
	s.generator.block = true

	summary, err := s.newPipeline(Config{RequestTimeout: 10 * time.Millisecond}).Run(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, summary.Failed)

	var genErr *quiz.GenerationError
	s.ErrorAs(summary.Outcomes[0].Err, &genErr)
	s.True(utils.IsTimeout(summary.Outcomes[0].Err))
}

func (s *PipelineSuite) TestCancelledContextStopsRun() {
	s.writeABC()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.newPipeline(Config{}).Run(ctx)
	s.ErrorIs(err, context.Canceled)
}

func (s *PipelineSuite) TestNoArticles() {
	summary, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Require().NoError(err)
	s.Zero(summary.Total)
}

func (s *PipelineSuite) TestMissingArticlesDirIsSetupError() {
	s.Require().NoError(os.Remove(filepath.Join(s.root, "articles")))
	_, err := s.newPipeline(Config{}).Run(s.ctx)
	s.Error(err)
}

func (s *PipelineSuite) TestNewRequiresDependencies() {
	_, err := New(Config{}, Dependencies{})
	s.Error(err)
}

func (s *PipelineSuite) assertPersistedAreDistinct() {
	idx, err := s.fileStore.LoadIndex(s.ctx)
	s.Require().NoError(err)
	entries := idx.Entries()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			sim, err := dedup.CosineSimilarity(entries[i].Embedding, entries[j].Embedding)
			s.Require().NoError(err)
			s.Less(sim, dedup.DefaultThreshold)
		}
	}
}
