package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"perfaudit/internal/adapter/llm"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// ChainState is the state of one streaming chain.
type ChainState int

const (
	StateStreaming ChainState = iota
	StateAwaitingContinuation
	StateDone
	StateFailed
)

func (s ChainState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateAwaitingContinuation:
		return "awaiting-continuation"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	stoppedMarker = "\n\n_[stopped]_"
	capMarker     = "\n\n_[output truncated: continuation limit reached]_"
)

// ChainResult is the outcome of one Run.
type ChainResult struct {
	Text          string
	Blocks        []*Block
	State         ChainState
	Continuations int
	// Err is set when retries were exhausted; the chain still returns the
	// text accumulated before the failure.
	Err error
}

// ChainRunner streams a prompt into a Reply and issues continuation requests
// while the model reports a length-limited finish.
type ChainRunner struct {
	streamer         port.Streamer
	policy           llm.RetryPolicy
	maxContinuations int
	continuePrompt   string
	sleep            llm.Sleeper
	logger           *zap.Logger
}

// ChainOption configures a ChainRunner.
type ChainOption func(*ChainRunner)

// WithChainSleeper replaces the backoff wait, used by tests.
func WithChainSleeper(s llm.Sleeper) ChainOption {
	return func(r *ChainRunner) { r.sleep = s }
}

// WithContinuePrompt sets the synthetic user turn sent after a truncation.
func WithContinuePrompt(p string) ChainOption {
	return func(r *ChainRunner) { r.continuePrompt = p }
}

func NewChainRunner(streamer port.Streamer, policy llm.RetryPolicy, maxContinuations int, logger *zap.Logger, opts ...ChainOption) *ChainRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChainRunner{
		streamer:         streamer,
		policy:           policy,
		maxContinuations: maxContinuations,
		continuePrompt:   "continue",
		sleep:            llm.SleepContext,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run streams prompt into reply. Only cancellation is returned as an error;
// exhausted retries leave an error marker in the current block and are
// reported through ChainResult.Err.
func (r *ChainRunner) Run(ctx context.Context, prompt string, reply *Reply) (ChainResult, error) {
	conv := []port.Message{{Role: "user", Content: prompt}}
	block := reply.NewBlock()
	state := StateStreaming

	var segments []string
	continuations := 0
	attempt := 0

	result := func(st ChainState, err error) ChainResult {
		return ChainResult{
			Text:          strings.Join(segments, ""),
			Blocks:        reply.Blocks(),
			State:         st,
			Continuations: continuations,
			Err:           err,
		}
	}

	for {
		switch state {
		case StateStreaming:
			var buf strings.Builder
			finish, err := r.streamer.Stream(ctx, port.CompletionRequest{Messages: conv}, func(delta string) {
				buf.WriteString(delta)
				block.Set(buf.String())
			})

			if err != nil {
				if ctx.Err() != nil {
					return r.stop(block, buf.String(), segments, result)
				}

				attempt++
				if attempt > r.policy.MaxRetries {
					r.logger.Warn("stream retries exhausted",
						zap.Int("attempts", attempt),
						zap.Error(err))
					block.Set(fmt.Sprintf("**Error:** request failed after %d retries: %v", attempt-1, err))
					block.Close()
					return result(StateFailed, fmt.Errorf("%w: %w", exhaustedKind(err), err)), nil
				}

				wait := r.policy.Delay(attempt, err)
				r.logger.Info("stream failed, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
				if serr := r.sleep(ctx, wait); serr != nil {
					return r.stop(block, "", segments, result)
				}
				// retried output replaces the failed attempt's partial text
				block.Set("")
				continue
			}

			attempt = 0
			segments = append(segments, buf.String())

			if finish != port.FinishLength {
				block.Close()
				state = StateDone
				continue
			}
			if continuations >= r.maxContinuations {
				r.logger.Warn("continuation limit reached",
					zap.Int("continuations", continuations))
				block.Append(capMarker)
				segments[len(segments)-1] += capMarker
				block.Close()
				state = StateDone
				continue
			}
			block.Close()
			conv = append(conv,
				port.Message{Role: "assistant", Content: buf.String()},
				port.Message{Role: "user", Content: r.continuePrompt},
			)
			continuations++
			state = StateAwaitingContinuation

		case StateAwaitingContinuation:
			block = reply.NewBlock()
			state = StateStreaming

		case StateDone:
			return result(StateDone, nil), nil
		}
	}
}

// stop keeps the partial output visible, appends the stopped marker and
// reports cancellation.
func (r *ChainRunner) stop(block *Block, partial string, segments []string, result func(ChainState, error) ChainResult) (ChainResult, error) {
	block.Set(partial + stoppedMarker)
	block.Close()
	res := result(StateFailed, nil)
	res.Text = strings.Join(append(segments, partial), "")
	res.Err = domain.ErrCancelled
	return res, domain.ErrCancelled
}

func exhaustedKind(err error) error {
	if domain.Classify(err) == domain.CodeRateLimit {
		return domain.ErrRateLimitExceeded
	}
	return domain.ErrUpstream
}
