package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTradeAndRejection(t *testing.T) {
	before := testutil.ToFloat64(tradesTotal.WithLabelValues("BTC", "BUY", "entry"))
	RecordTrade("BTC", "BUY", "entry", 1500)
	assert.Equal(t, before+1, testutil.ToFloat64(tradesTotal.WithLabelValues("BTC", "BUY", "entry")))

	rej := testutil.ToFloat64(rejectionsTotal.WithLabelValues("risk"))
	RecordRejection("risk")
	assert.Equal(t, rej+1, testutil.ToFloat64(rejectionsTotal.WithLabelValues("risk")))

	UpdateEquity(10250.5)
	assert.Equal(t, 10250.5, testutil.ToFloat64(equity))
	UpdateOpenPositions(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(openPositions))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordHalt("daily_loss")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "perptrader_halts_total"))
}
