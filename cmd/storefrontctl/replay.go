package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/storefront/internal/api"
	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/spf13/cobra"
)

// replayErrorBackoff keeps a refused connection from spinning a worker.
const replayErrorBackoff = 50 * time.Millisecond

type replayOptions struct {
	targetURL   string
	concurrency int
	duration    time.Duration
	secret      string
	reference   string
}

// replayCounters tallies webhook responses across workers.
type replayCounters struct {
	total     uint64
	accepted  uint64 // 200
	rejected  uint64 // 4xx
	retryable uint64 // 5xx
	failed    uint64 // transport errors
}

func replayCmd() *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Deliver one signed charge.success event concurrently to exercise duplicate handling",
		Long: `Replay signs a single charge.success event with the webhook secret and posts it
from many workers at once. The service verifies the reference with the gateway,
so use a reference that exists there. However many deliveries succeed, the
reference should end up with exactly one order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.secret = env(cmd, map[string]string{"PAYSTACK_WEBHOOK_SECRET": "secret"}).GetString("PAYSTACK_WEBHOOK_SECRET")
			if opts.secret == "" {
				return fmt.Errorf("PAYSTACK_WEBHOOK_SECRET environment variable or --secret flag is required")
			}
			if opts.reference == "" {
				return fmt.Errorf("--reference is required")
			}
			if opts.concurrency < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}

			body, err := chargeSuccessEvent(opts.reference)
			if err != nil {
				return err
			}
			signature := api.Sign(opts.secret, body)

			var counters replayCounters
			start := time.Now()
			var wg sync.WaitGroup
			wg.Add(opts.concurrency)
			for i := 0; i < opts.concurrency; i++ {
				go replayWorker(&wg, start, opts, body, signature, &counters)
			}
			wg.Wait()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(counters.results(opts, time.Since(start)))
		},
	}

	cmd.Flags().StringVar(&opts.targetURL, "url", "http://localhost:8080", "Service base URL")
	cmd.Flags().IntVar(&opts.concurrency, "workers", 10, "Number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 5*time.Second, "How long to keep delivering")
	cmd.Flags().String("secret", "", "Webhook signing secret (default $PAYSTACK_WEBHOOK_SECRET)")
	cmd.Flags().StringVar(&opts.reference, "reference", "", "Payment reference to deliver")
	return cmd
}

func chargeSuccessEvent(reference string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event": domain.EventChargeSuccess,
		"id":    uuid.NewString(),
		"data": map[string]any{
			"reference": reference,
			"status":    string(domain.TransactionSuccess),
		},
	})
}

func replayWorker(wg *sync.WaitGroup, start time.Time, opts replayOptions, body []byte, signature string, c *replayCounters) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < opts.duration {
		req, err := http.NewRequest(http.MethodPost, opts.targetURL+"/webhooks/payment", bytes.NewReader(body))
		if err != nil {
			atomic.AddUint64(&c.failed, 1)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(api.SignatureHeader, signature)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&c.failed, 1)
			time.Sleep(replayErrorBackoff)
			continue
		}

		atomic.AddUint64(&c.total, 1)
		switch {
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&c.accepted, 1)
		case resp.StatusCode >= 500:
			atomic.AddUint64(&c.retryable, 1)
		default:
			atomic.AddUint64(&c.rejected, 1)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (c *replayCounters) results(opts replayOptions, d time.Duration) map[string]any {
	total := atomic.LoadUint64(&c.total)
	return map[string]any{
		"reference":      opts.reference,
		"workers":        opts.concurrency,
		"duration_sec":   d.Seconds(),
		"deliveries":     total,
		"throughput_rps": float64(total) / d.Seconds(),
		"accepted":       atomic.LoadUint64(&c.accepted),
		"rejected":       atomic.LoadUint64(&c.rejected),
		"retryable":      atomic.LoadUint64(&c.retryable),
		"errors":         atomic.LoadUint64(&c.failed),
	}
}
