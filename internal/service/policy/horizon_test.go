package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"
	testSigner  = "GCEZWKCA5VLDNRLN3RPRJMRZOX3Z6G5CHCGSNFHEYVXM3XOJMDS674JZ"
)

func newHorizonServer(t *testing.T, handler http.HandlerFunc) *HorizonClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHorizonClient(srv.URL, 500*time.Millisecond)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestHorizonLoadAccount(t *testing.T) {
	client := newHorizonServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/accounts/"+testAccount) {
			writeJSON(w, http.StatusNotFound, `{"status":404,"title":"Resource Missing"}`)
			return
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{
			"id": %[1]q,
			"account_id": %[1]q,
			"sequence": "1",
			"thresholds": {"low_threshold": 1, "med_threshold": 2, "high_threshold": 3},
			"signers": [
				{"public_key": %[1]q, "key": %[1]q, "weight": 1, "type": "ed25519_public_key"},
				{"public_key": %[2]q, "key": %[2]q, "weight": 2, "type": "ed25519_public_key"},
				{"public_key": "XABC", "key": "XABC", "weight": 1, "type": "sha256_hash"},
				{"public_key": "GOFF", "key": "GOFF", "weight": 0, "type": "ed25519_public_key"}
			]
		}`, testAccount, testSigner))
	})

	p, err := client.LoadAccount(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.ThresholdLow)
	assert.Equal(t, uint32(2), p.ThresholdMedium)
	assert.Equal(t, uint32(3), p.ThresholdHigh)
	require.Len(t, p.Signers, 2)
	assert.Equal(t, testSigner, p.Signers[1].PublicKey)
	assert.Equal(t, uint32(2), p.Signers[1].Weight)

	_, err = client.LoadAccount(context.Background(), testSigner)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestHorizonServerErrorIsUnavailable(t *testing.T) {
	client := newHorizonServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"status":500,"title":"Internal Server Error"}`)
	})

	_, err := client.LoadAccount(context.Background(), testAccount)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.False(t, errors.Is(err, ErrAccountNotFound))
}

func TestHorizonTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	client := newHorizonServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	})
	defer close(release)

	start := time.Now()
	_, err := client.LoadAccount(context.Background(), testAccount)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestHorizonBroadcast(t *testing.T) {
	client := newHorizonServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("tx") {
		case "good":
			writeJSON(w, http.StatusOK, `{"hash":"abc123","ledger":77,"envelope_xdr":"","result_xdr":"","result_meta_xdr":""}`)
		default:
			writeJSON(w, http.StatusBadRequest, `{
				"status": 400,
				"title": "Transaction Failed",
				"extras": {"result_codes": {"transaction": "tx_bad_auth"}}
			}`)
		}
	})

	res, err := client.Broadcast(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.NetworkTransactionID)
	assert.Equal(t, uint32(77), res.Ledger)

	_, err = client.Broadcast(context.Background(), "bad")
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Equal(t, "tx_bad_auth", rejected.TransactionCode)
}
