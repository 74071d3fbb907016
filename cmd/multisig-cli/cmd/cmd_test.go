package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-core/internal/event"
	"multisig-core/internal/model"
	"multisig-core/internal/service/mq"
	"multisig-core/pkg/crypto_util"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/envelope/envelopetest"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSignEnvelopeProducesVerifiableSignature(t *testing.T) {
	codec := envelopetest.NewCodec(t)
	source := envelopetest.NewKeypair(t)
	signer := envelopetest.NewKeypair(t)
	envB64 := envelopetest.NewEnvelope(t, source.Address(), 7, "payroll")

	result, err := SignEnvelope(envelopetest.Passphrase, envB64, signer.Seed())
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), result.SignerPublicKey)
	assert.Equal(t, envelopetest.Signature(t, codec, envB64, signer), result.Signature)

	hash, err := envelope.ParseHashHex(result.Hash)
	require.NoError(t, err)
	sig, err := crypto_util.DecodeSignature(result.Signature)
	require.NoError(t, err)
	assert.NoError(t, crypto_util.VerifyEd25519(signer.Address(), hash[:], sig))
}

func TestSignEnvelopeRejectsBadInput(t *testing.T) {
	source := envelopetest.NewKeypair(t)
	envB64 := envelopetest.NewEnvelope(t, source.Address(), 1, "")

	_, err := SignEnvelope(envelopetest.Passphrase, envB64, source.Address())
	assert.ErrorContains(t, err, "需要私钥种子")

	_, err = SignEnvelope(envelopetest.Passphrase, envB64, "not-a-seed")
	assert.Error(t, err)

	_, err = SignEnvelope(envelopetest.Passphrase, "%%%", source.Seed())
	assert.ErrorIs(t, err, envelope.ErrDecode)
}

func TestHashCommand(t *testing.T) {
	codec := envelopetest.NewCodec(t)
	source := envelopetest.NewKeypair(t)
	envB64 := envelopetest.NewEnvelope(t, source.Address(), 3, "")

	env, err := codec.Decode(envB64)
	require.NoError(t, err)
	want, err := codec.ContentHash(env)
	require.NoError(t, err)

	out, err := runCLI(t, "--passphrase", envelopetest.Passphrase, "hash", envB64)
	require.NoError(t, err)

	var got struct {
		Hash    string           `json:"hash"`
		Summary envelope.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, envelope.HashHex(want), got.Hash)
	assert.Equal(t, source.Address(), got.Summary.SourceAccount)
}

func TestExpireCommandPostsLedger(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/expire", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"currentLedger":120,"expired":2}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "expire", "--ledger", "120")
	require.NoError(t, err)
	assert.EqualValues(t, 120, received["currentLedger"])
	assert.Contains(t, out, `"expired": 2`)
}

func TestPostJSONSurfacesErrorRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":30201,"msg":"duplicate proposal","ref":"abc-123"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, "--server", srv.URL, "expire", "--ledger", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 409")
	assert.Contains(t, err.Error(), "abc-123")
}

func TestPrintEvent(t *testing.T) {
	evt := event.ProposalEvent{
		Type:                 event.ProposalSubmitted,
		ID:                   "tx-1",
		AccountID:            "GABC",
		Status:               model.StatusSubmitted,
		CollectedWeight:      2,
		RequiredThreshold:    2,
		NetworkTransactionID: "deadbeef",
		OccurredAt:           time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printEvent(&out, &mq.Message{ID: "1-0", Key: "tx-1", Payload: payload}))
	line := out.String()
	assert.Contains(t, line, "multisig.proposal.submitted")
	assert.Contains(t, line, "weight=2/2")
	assert.Contains(t, line, "tx=deadbeef")

	out.Reset()
	require.NoError(t, printEvent(&out, &mq.Message{ID: "2-0", Key: "k", Payload: []byte("oops")}))
	assert.True(t, strings.HasPrefix(out.String(), "[2-0] key=k raw=oops"))
}
