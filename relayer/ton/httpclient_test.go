package ton

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/ratelimit"
)

func newHTTPTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, "test-key", ratelimit.New(0, 1), testLogger(t))
}

func envelope(result interface{}) []byte {
	raw, _ := json.Marshal(result)
	out, _ := json.Marshal(map[string]interface{}{"ok": true, "result": json.RawMessage(raw)})
	return out
}

func TestBalanceParsesResult(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getAddressBalance", r.URL.Path)
		assert.Equal(t, "0:wallet", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Write(envelope("123456789"))
	})

	balance, err := client.Balance(context.Background(), "0:wallet")
	require.NoError(t, err)
	assert.Equal(t, "123456789", balance.String())
}

func TestSeqnoViaGetMethod(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runGetMethod", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "seqno", body["method"])

		w.Write(envelope(getMethodResult{ExitCode: 0, Stack: [][]string{{"num", "0x2a"}}}))
	})

	seqno, err := client.Seqno(context.Background(), "0:wallet")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seqno)
}

func TestGetMethodNonZeroExitCode(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(getMethodResult{ExitCode: -13}))
	})

	_, err := client.Seqno(context.Background(), "0:wallet")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRPC))
}

func TestServerErrorIsRetryable(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Balance(context.Background(), "0:wallet")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRPC))
	assert.True(t, errors.IsRetryable(err))
}

func TestAPIErrorEnvelope(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "address not found"})
	})

	_, err := client.Balance(context.Background(), "0:wallet")
	require.Error(t, err)
	assert.ErrorContains(t, err, "address not found")
}

func TestPoolReservesReadsBothSides(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(getMethodResult{Stack: [][]string{
			{"num", "1000000000"},
			{"num", "5000000000"},
		}}))
	})

	reserve0, reserve1, err := client.PoolReserves(context.Background(), "0:pool")
	require.NoError(t, err)
	assert.Equal(t, "1000000000", reserve0.String())
	assert.Equal(t, "5000000000", reserve1.String())
}

func TestStackTypeMismatch(t *testing.T) {
	client := newHTTPTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(getMethodResult{Stack: [][]string{{"cell", "abc"}}}))
	})

	_, err := client.Seqno(context.Background(), "0:wallet")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeParse))
}
