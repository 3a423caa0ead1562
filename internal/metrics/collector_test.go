package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.stageExecutionsTotal)
	assert.NotNil(t, collector.stageDuration)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.turnsCompletedTotal)
	assert.NotNil(t, collector.promptTokens)
}

func TestCollector_RecordStageExecution(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordStageExecution("route", "success", 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.stageExecutionsTotal)
	assert.Greater(t, count, 0)

	collector.RecordStageExecution("route", "error", 50*time.Millisecond)

	newCount := testutil.CollectAndCount(collector.stageExecutionsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordLLMRequest(
		"openai",
		"gpt-4o",
		"success",
		500*time.Millisecond,
		100, // prompt tokens
		50,  // completion tokens
	)

	count := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, count, 0)

	tokensCount := testutil.CollectAndCount(collector.llmTokensUsed)
	assert.Greater(t, tokensCount, 0)
}

func TestCollector_RecordTurnAndWrapUp(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordTurnCompleted("retrieval")
	collector.RecordTurnCompleted("history_only")
	collector.RecordWrapUp("success")

	turnCount := testutil.CollectAndCount(collector.turnsCompletedTotal)
	assert.Greater(t, turnCount, 0)

	wrapCount := testutil.CollectAndCount(collector.wrapUpsTotal)
	assert.Greater(t, wrapCount, 0)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordCacheHit("redis")
	collector.RecordCacheMiss("redis")

	hitCount := testutil.CollectAndCount(collector.retrievalCacheHits)
	assert.Greater(t, hitCount, 0)

	missCount := testutil.CollectAndCount(collector.retrievalCacheMisses)
	assert.Greater(t, missCount, 0)
}

func TestCollector_RecordRetrievalAndSearch(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordRetrieval("pinecone", 4)
	collector.RecordSearchRequest("tavily", "success")
	collector.RecordReadings("tavily", 5)

	retrievalCount := testutil.CollectAndCount(collector.passagesRetrieved)
	assert.Greater(t, retrievalCount, 0)

	searchCount := testutil.CollectAndCount(collector.searchRequestsTotal)
	assert.Greater(t, searchCount, 0)

	readingsCount := testutil.CollectAndCount(collector.readingsCollected)
	assert.Greater(t, readingsCount, 0)
}

func TestCollector_RecordPromptTokens(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordPromptTokens("session-1", 1024)
	collector.RecordPromptTokens("session-1", 2048)

	count := testutil.CollectAndCount(collector.promptTokens)
	assert.Greater(t, count, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordStageExecution("synthesis", "success", 100*time.Millisecond)
			collector.RecordLLMRequest("openai", "gpt-4o", "success", 500*time.Millisecond, 100, 50)
			collector.RecordCacheHit("redis")
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	stageCount := testutil.CollectAndCount(collector.stageExecutionsTotal)
	assert.Greater(t, stageCount, 0)

	llmCount := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, llmCount, 0)

	cacheCount := testutil.CollectAndCount(collector.retrievalCacheHits)
	assert.Greater(t, cacheCount, 0)
}
