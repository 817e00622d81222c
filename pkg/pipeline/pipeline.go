package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/store"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"github.com/google/uuid"
)

const DefaultRequestTimeout = 2 * time.Minute

type ArticleSource interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, path string) (articles.Article, error)
}

type CandidateGenerator interface {
	Generate(ctx context.Context, article articles.Article) (quiz.Candidate, model.GenerationMetadata, error)
}

type QuestionEmbedder interface {
	Embed(ctx context.Context, text string) (model.EmbeddingVector, model.GenerationMetadata, error)
}

type Config struct {
	Threshold      float64
	Strategy       dedup.Strategy
	RequestTimeout time.Duration

	// Regenerate processes articles that already have a quiz or error record.
	Regenerate bool

	// OnStart, if set, is called once with the number of articles found.
	OnStart func(total int)

	// OnProgress, if set, is called after each article with its outcome.
	OnProgress func(Outcome)
}

type Dependencies struct {
	Articles  ArticleSource
	Generator CandidateGenerator
	Embedder  QuestionEmbedder
	Store     store.RecordStore
}

type Pipeline struct {
	cfg  Config
	deps Dependencies
}

func New(cfg Config, deps Dependencies) (*Pipeline, error) {
	if deps.Articles == nil || deps.Generator == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, utils.WrapIfNotNil(errors.New("articles, generator, embedder and store are all required"))
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = dedup.DefaultThreshold
	}
	if cfg.Strategy == "" {
		cfg.Strategy = dedup.DefaultStrategy
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Run processes every article in sorted order. Per-article failures are
// recorded in the summary; an error is returned only when the run itself
// cannot proceed.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	ctx = logging.ContextWithFields(ctx, logging.Fields{"run_id": summary.RunID})
	log := logging.NewLogger(ctx)

	idx, err := p.deps.Store.LoadIndex(ctx)
	if err != nil {
		return summary, utils.WrapIfNotNil(err, "load index")
	}

	paths, err := p.deps.Articles.List(ctx)
	if err != nil {
		return summary, utils.WrapIfNotNil(err, "list articles")
	}
	if len(paths) == 0 {
		log.Infof("no articles found")
		return summary, nil
	}

	log.Infof(
		"run_started articles=%d index_entries=%d threshold=%v strategy=%s regenerate=%v",
		len(paths),
		idx.Len(),
		p.cfg.Threshold,
		p.cfg.Strategy,
		p.cfg.Regenerate,
	)
	if p.cfg.OnStart != nil {
		p.cfg.OnStart(len(paths))
	}

	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, utils.WrapIfNotNil(ctxErr)
		}

		outcome := p.processArticle(ctx, path, idx)
		if outcome.State == StateFailed && ctx.Err() != nil {
			return summary, utils.WrapIfNotNil(ctx.Err())
		}

		summary.add(outcome)
		if p.cfg.OnProgress != nil {
			p.cfg.OnProgress(outcome)
		}
	}

	log.Infof(
		"run_finished total=%d persisted=%d rejected=%d failed=%d skipped=%d",
		summary.Total,
		summary.Persisted,
		summary.Rejected,
		summary.Failed,
		summary.Skipped,
	)
	return summary, nil
}

func (p *Pipeline) processArticle(ctx context.Context, path string, idx *dedup.Index) Outcome {
	outcome := Outcome{ArticleID: articles.ID(path), Path: path}
	ctx = logging.ContextWithFields(ctx, logging.Fields{"article": outcome.ArticleID})
	log := logging.NewLogger(ctx)

	fail := func(stage string, err error) Outcome {
		outcome.State = StateFailed
		outcome.Stage = stage
		outcome.Err = err
		log.WithField("stage", stage).Errorf("article failed: %v", err)
		return outcome
	}

	if !p.cfg.Regenerate {
		exists, err := p.deps.Store.HasRecord(ctx, outcome.ArticleID)
		if err != nil {
			return fail(stageLoad, err)
		}
		if exists {
			outcome.State = StateSkipped
			log.Infof("article skipped: record exists")
			return outcome
		}
	}

	article, err := p.deps.Articles.Load(ctx, path)
	if err != nil {
		return fail(stageLoad, err)
	}
	outcome.State = StateLoaded

	candidate, err := p.generate(ctx, article)
	if err != nil {
		return fail(stageGenerate, err)
	}
	outcome.State = StateGenerated
	outcome.Question = candidate.Question

	vector, err := p.embed(ctx, candidate.Question)
	if err != nil {
		return fail(stageEmbed, err)
	}
	outcome.State = StateEmbedded

	detector := dedup.Detector{
		Threshold: p.cfg.Threshold,
		Strategy:  p.cfg.Strategy,
		Exclude:   article.ID,
	}
	result, err := detector.Check(vector, idx)
	if err != nil {
		return fail(stageDedup, err)
	}

	if result.Duplicate {
		record := quiz.NewDuplicateRecord(candidate.Question, result.Match.Question, result.Match.Source, result.Similarity)
		err = p.deps.Store.SaveError(ctx, article.ID, record)
		if err != nil {
			return fail(stagePersist, err)
		}
		outcome.State = StateRejected
		outcome.Similarity = result.Similarity
		outcome.MatchedWith = result.Match.Source
		log.Warnf("duplicate question rejected similarity=%.4f matched_with=%s", result.Similarity, result.Match.Source)
		return outcome
	}

	source, err := p.deps.Store.SaveQuiz(ctx, article.ID, quiz.NewQuizRecord(candidate, vector))
	if err != nil {
		return fail(stagePersist, err)
	}
	idx.Put(dedup.Entry{
		ArticleID: article.ID,
		Source:    source,
		Question:  candidate.Question,
		Embedding: vector,
	})
	outcome.State = StatePersisted
	outcome.Source = source
	log.Infof("quiz persisted source=%s", source)
	return outcome
}

func (p *Pipeline) generate(ctx context.Context, article articles.Article) (quiz.Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	candidate, _, err := p.deps.Generator.Generate(callCtx, article)
	if err != nil {
		var genErr *quiz.GenerationError
		if !errors.As(err, &genErr) {
			err = &quiz.GenerationError{ArticleID: article.ID, Err: err}
		}
		return quiz.Candidate{}, err
	}
	return candidate, nil
}

func (p *Pipeline) embed(ctx context.Context, text string) (model.EmbeddingVector, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	vector, _, err := p.deps.Embedder.Embed(callCtx, text)
	if err != nil {
		var embErr *quiz.EmbeddingError
		if !errors.As(err, &embErr) {
			err = &quiz.EmbeddingError{Err: err}
		}
		return nil, err
	}
	return vector, nil
}
