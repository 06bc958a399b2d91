package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/storefront/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_SignsAndCountsDeliveries(t *testing.T) {
	var hits, badSig int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		atomic.AddInt64(&hits, 1)
		if api.VerifySignature("whsec", body, r.Header.Get(api.SignatureHeader)) != nil {
			atomic.AddInt64(&badSig, 1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var ev map[string]any
		if json.Unmarshal(body, &ev) != nil || ev["event"] != "charge.success" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cmd := replayCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--url", srv.URL, "--workers", "3", "--duration", "100ms", "--secret", "whsec", "--reference", "r1"})
	require.NoError(t, cmd.Execute())

	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "r1", res["reference"])
	assert.Equal(t, float64(atomic.LoadInt64(&hits)), res["deliveries"])
	assert.Equal(t, res["deliveries"], res["accepted"])
	assert.Zero(t, atomic.LoadInt64(&badSig))
	assert.Positive(t, res["deliveries"].(float64))
}

func TestReplay_ReusesConnections(t *testing.T) {
	var conns int64
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"received":true}`))
	}))
	srv.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew {
			atomic.AddInt64(&conns, 1)
		}
	}
	srv.Start()
	defer srv.Close()

	res := runReplay(t, "--url", srv.URL, "--workers", "2", "--duration", "100ms", "--secret", "whsec", "--reference", "r1")

	assert.Greater(t, res["deliveries"].(float64), float64(2))
	assert.LessOrEqual(t, atomic.LoadInt64(&conns), int64(2))
}

func TestReplay_BacksOffOnTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := runReplay(t, "--url", url, "--workers", "1", "--duration", "200ms", "--secret", "whsec", "--reference", "r1")

	assert.Zero(t, res["deliveries"])
	errs := res["errors"].(float64)
	assert.GreaterOrEqual(t, errs, float64(1))
	assert.LessOrEqual(t, errs, float64(200*time.Millisecond/replayErrorBackoff+1))
}

func runReplay(t *testing.T, args ...string) map[string]any {
	t.Helper()
	cmd := replayCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res
}

func TestReplay_RequiresSecretAndReference(t *testing.T) {
	t.Setenv("PAYSTACK_WEBHOOK_SECRET", "")

	cmd := replayCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--reference", "r1"})
	assert.ErrorContains(t, cmd.Execute(), "PAYSTACK_WEBHOOK_SECRET")

	cmd = replayCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--secret", "whsec"})
	assert.ErrorContains(t, cmd.Execute(), "--reference")
}

func TestChargeSuccessEvent(t *testing.T) {
	body, err := chargeSuccessEvent("abc")
	require.NoError(t, err)

	var ev struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, "charge.success", ev.Event)
	assert.Equal(t, "abc", ev.Data.Reference)
}
