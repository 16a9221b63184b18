package deviceconfig

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// VerificationOptions configures how configuration verification behaves
type VerificationOptions struct {
	// MaxRetries is the maximum number of verification attempts
	// Default: 3
	MaxRetries int

	// InitialDelay is the delay before the first verification attempt
	// This gives the module time to commit the configuration
	// Default: 500ms
	InitialDelay time.Duration

	// RetryDelay is the delay between retry attempts
	// Default: 1s
	RetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	// If true, each retry delay is doubled (up to MaxRetryDelay)
	// Default: true
	UseExponentialBackoff bool

	// MaxRetryDelay is the maximum delay between retries when using exponential backoff
	// Default: 5s
	MaxRetryDelay time.Duration
}

// DefaultVerificationOptions returns sensible defaults for verification
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:            3,
		InitialDelay:          500 * time.Millisecond,
		RetryDelay:            1 * time.Second,
		UseExponentialBackoff: true,
		MaxRetryDelay:         5 * time.Second,
	}
}

// VerificationResult contains the results of a configuration verification
type VerificationResult struct {
	// Success indicates whether verification succeeded
	Success bool

	// Attempts is the number of attempts made
	Attempts int

	// Mismatches lists all detected mismatches between expected and actual state
	Mismatches []string

	// Error is any error that occurred during verification
	Error error
}

// VerifyUpdate reads back every message in the update and compares it with
// what the module reports. Retries with backoff absorb the module's commit
// latency; each attempt uses its own session.
func (c *Client) VerifyUpdate(ctx context.Context, u Update, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}

	result := &VerificationResult{
		Success:    false,
		Attempts:   0,
		Mismatches: []string{},
	}

	// Initial delay to give the module time to commit
	time.Sleep(opts.InitialDelay)

	currentDelay := opts.RetryDelay

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result.Attempts++

		// Delay before retry (not on first attempt)
		if attempt > 0 {
			time.Sleep(currentDelay)

			// Exponential backoff
			if opts.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > opts.MaxRetryDelay {
					currentDelay = opts.MaxRetryDelay
				}
			}
		}

		mismatches, err := c.verifyAttempt(ctx, u.Address, u.Messages)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: failed to read back configuration: %w", attempt+1, err)
			// Don't give up on session errors - retry
			continue
		}

		result.Mismatches = mismatches

		if len(mismatches) == 0 {
			result.Success = true
			result.Error = nil
			return result
		}

		if attempt < opts.MaxRetries {
			result.Error = fmt.Errorf("attempt %d: configuration mismatch (will retry)", attempt+1)
		} else {
			result.Error = fmt.Errorf("verification failed after %d attempts: %s", result.Attempts, formatMismatches(mismatches))
		}
	}

	return result
}

// verifyAttempt reads back the expected messages in one session and returns
// the mismatches. Comparison is on encoded bytes: two messages agree exactly
// when their wire forms agree.
func (c *Client) verifyAttempt(ctx context.Context, addr transport.Address, expected []protocol.Message) ([]string, error) {
	session, err := c.transport.Connect(ctx, addr)
	if err != nil {
		return nil, NewConnectError(addr.String(), err)
	}
	defer func() { _ = session.Close() }()

	var mismatches []string
	for _, want := range expected {
		wantBytes, err := protocol.Encode(want)
		if err != nil {
			return nil, err
		}

		got, err := c.readMessage(session, addr, want.Command())
		if err != nil {
			return nil, err
		}
		gotBytes, err := protocol.Encode(got)
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(wantBytes, gotBytes) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %s, got %s",
				protocol.CommandName(want.Command()), want, got))
		}
	}
	return mismatches, nil
}

// formatMismatches creates a human-readable summary of mismatches
func formatMismatches(mismatches []string) string {
	if len(mismatches) == 0 {
		return "none"
	}
	if len(mismatches) == 1 {
		return mismatches[0]
	}
	result := fmt.Sprintf("%d mismatches: ", len(mismatches))
	for i, m := range mismatches {
		if i > 0 {
			result += "; "
		}
		result += m
	}
	return result
}

// ApplyAndVerify is a convenience method that applies an update and verifies
// it was committed. This combines SendAll and VerifyUpdate in a single call.
func (c *Client) ApplyAndVerify(ctx context.Context, u Update, opts *VerificationOptions) *VerificationResult {
	if _, err := c.SendAll(ctx, u.Address, u.Messages); err != nil {
		return &VerificationResult{
			Success:  false,
			Attempts: 0,
			Error:    fmt.Errorf("update failed: %w", err),
		}
	}

	return c.VerifyUpdate(ctx, u, opts)
}
