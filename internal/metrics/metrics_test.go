package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestRecordedSeriesAreExposed(t *testing.T) {
	Init()
	Init()

	RecordLLMCall("reviewer", time.Second, errors.New("boom"))
	RecordGatewayCall("yahoo", "quote", nil)
	RecordTrade("buy", "executed")
	RecordDay("approved", 2, 92, true)

	body := scrape(t)
	assert.Contains(t, body, `cortex_llm_calls_total{role="reviewer",status="error"}`)
	assert.Contains(t, body, `cortex_gateway_calls_total{operation="quote",provider="yahoo",status="success"}`)
	assert.Contains(t, body, `cortex_trades_total{action="buy",status="executed"}`)
	assert.Contains(t, body, `cortex_day_outcomes_total{outcome="approved"}`)
	assert.Contains(t, body, "cortex_review_score_count")
}
