package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/structured"
	"github.com/eidoslabs/eidos/types"
	"github.com/eidoslabs/eidos/websearch"
)

const summaryInstruction = "The dialogue has ended. Summarize it as an ordered list of " +
	"the key ideas the user expressed, one sentence per idea, in the order they came up."

const adviceInstruction = "The dialogue has ended. Suggest concrete ways the user could " +
	"explore the beliefs they expressed further: theories to research, implications to " +
	"reflect on, discussions to seek out."

const searchQueriesInstruction = "The dialogue has ended. Generate web search queries, " +
	"one per philosophical topic discussed, for finding articles the user could read next."

type summaryModel struct {
	Points []string `json:"points" jsonschema:"required,description=Key ideas from the conversation"`
}

type adviceModel struct {
	Advices []string `json:"advices" jsonschema:"required,description=Ways to explore the beliefs further"`
}

type queriesModel struct {
	Queries []string `json:"queries" jsonschema:"required,description=Web search queries"`
}

// titleBoilerplate lists branding strings stripped from search result
// titles before deduplication.
var titleBoilerplate = []string{
	" - Stanford Encyclopedia of Philosophy",
	" (Stanford Encyclopedia of Philosophy)",
	" | Internet Encyclopedia of Philosophy",
	" - Internet Encyclopedia of Philosophy",
	" - Wikipedia",
}

// WrapUpStage computes the end-of-session artifacts: a summary, areas
// for improvement, and web-search-backed suggested readings. All three
// generations read the full history independently.
type WrapUpStage struct {
	summary     *structured.Output[summaryModel]
	advice      *structured.Output[adviceModel]
	queries     *structured.Output[queriesModel]
	searcher    websearch.Searcher
	maxReadings int
	logger      *zap.Logger
}

// NewWrapUpStage builds the wrap-up stage. searcher may be nil, in which
// case bundles carry no readings.
func NewWrapUpStage(provider llm.Provider, model string, temperature float32, searcher websearch.Searcher, maxReadings int, logger *zap.Logger) (*WrapUpStage, error) {
	summary, err := structured.New[summaryModel](provider, model, temperature)
	if err != nil {
		return nil, err
	}
	advice, err := structured.New[adviceModel](provider, model, temperature)
	if err != nil {
		return nil, err
	}
	queries, err := structured.New[queriesModel](provider, model, temperature)
	if err != nil {
		return nil, err
	}
	return &WrapUpStage{
		summary:     summary,
		advice:      advice,
		queries:     queries,
		searcher:    searcher,
		maxReadings: maxReadings,
		logger:      logger.With(zap.String("stage", "wrapup")),
	}, nil
}

// Build computes the bundle from the full conversation.
func (s *WrapUpStage) Build(ctx context.Context, turns []types.Turn) (*types.WrapUpBundle, error) {
	summary, err := s.summary.Generate(ctx, wrapMessages(summaryInstruction, turns))
	if err != nil {
		return nil, err
	}
	advice, err := s.advice.Generate(ctx, wrapMessages(adviceInstruction, turns))
	if err != nil {
		return nil, err
	}

	readings, err := s.suggestReadings(ctx, turns)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wrap-up bundle built",
		zap.Int("summary_points", len(summary.Points)),
		zap.Int("advices", len(advice.Advices)),
		zap.Int("readings", len(readings)))

	return &types.WrapUpBundle{
		Summary:          summary.Points,
		ImprovementAreas: advice.Advices,
		Readings:         readings,
	}, nil
}

// suggestReadings generates search queries, runs one search per query,
// and merges the results in query order. A single query's search failure
// is skipped; the remaining queries still contribute.
func (s *WrapUpStage) suggestReadings(ctx context.Context, turns []types.Turn) ([]types.Reading, error) {
	if s.searcher == nil {
		return nil, nil
	}
	queries, err := s.queries.Generate(ctx, wrapMessages(searchQueriesInstruction, turns))
	if err != nil {
		return nil, err
	}

	perQuery := make([][]websearch.Result, len(queries.Queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries.Queries {
		g.Go(func() error {
			results, err := s.searcher.Search(gctx, query)
			if err != nil {
				s.logger.Warn("search query skipped",
					zap.String("query", query), zap.Error(err))
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	// Goroutines report failures by leaving their slot empty.
	_ = g.Wait()

	return s.collectReadings(perQuery), nil
}

// collectReadings flattens per-query results in query order, cleans
// titles, deduplicates first-seen-wins by exact title, and truncates to
// the configured maximum.
func (s *WrapUpStage) collectReadings(perQuery [][]websearch.Result) []types.Reading {
	seen := make(map[string]struct{})
	var readings []types.Reading
	for _, results := range perQuery {
		for _, r := range results {
			title := cleanTitle(r.Title)
			if title == "" {
				continue
			}
			if _, ok := seen[title]; ok {
				continue
			}
			seen[title] = struct{}{}
			readings = append(readings, types.Reading{
				Title:   title,
				Link:    r.Link,
				Snippet: r.Snippet,
			})
			if len(readings) == s.maxReadings {
				return readings
			}
		}
	}
	return readings
}

// cleanTitle strips known encyclopedia branding from a result title.
func cleanTitle(title string) string {
	for _, b := range titleBoilerplate {
		title = strings.ReplaceAll(title, b, "")
	}
	return strings.TrimSpace(title)
}

// wrapMessages builds the system + full-transcript prompt shared by the
// three wrap-up generations.
func wrapMessages(instruction string, turns []types.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.NewSystemMessage(instruction))
	messages = append(messages, historyMessages(turns)...)
	return messages
}
