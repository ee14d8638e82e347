// Package resolver turns free-form comma-separated user input into watchlist
// entries, resolving every token concurrently.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/notify"
	"ai-market-dashboard/internal/types"
	"ai-market-dashboard/internal/watchlist"
)

// InstrumentResolver identifies the instrument behind one user query. A nil
// instrument with nil error means no confident match.
type InstrumentResolver interface {
	Resolve(ctx context.Context, query string) (*types.Instrument, error)
}

// Result partitions a batch into what happened to each token.
type Result struct {
	Added      []types.Instrument
	Duplicates []string
	Unresolved []string
}

// BatchResolver resolves token batches against the watchlist.
type BatchResolver struct {
	res      InstrumentResolver
	list     *watchlist.Store
	notifier notify.Notifier
}

// New creates a batch resolver. notifier may be nil to suppress the summary
// notification.
func New(res InstrumentResolver, list *watchlist.Store, notifier notify.Notifier) *BatchResolver {
	return &BatchResolver{res: res, list: list, notifier: notifier}
}

// Resolve splits input on commas, resolves every token concurrently and
// appends the newly resolved instruments to the watchlist in one batch.
// Tokens resolving to an already watched symbol count as duplicates, as does
// the second of two tokens resolving to the same new symbol. Failed or
// unidentified tokens count as unresolved and never abort the rest. A single
// summary notification reports the counts. Empty input is a no-op.
func (b *BatchResolver) Resolve(ctx context.Context, input string) Result {
	tokens := splitTokens(input)
	if len(tokens) == 0 {
		return Result{}
	}

	type outcome struct {
		inst *types.Instrument
		err  error
	}
	outcomes := make([]outcome, len(tokens))

	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			inst, err := b.res.Resolve(ctx, tok)
			outcomes[i] = outcome{inst: inst, err: err}
		}(i, tok)
	}
	wg.Wait()

	var result Result
	seen := make(map[string]bool, len(tokens))
	for i, tok := range tokens {
		o := outcomes[i]
		switch {
		case o.err != nil:
			logger.Warn(ctx, "Token resolution failed", "token", tok, "error", o.err)
			result.Unresolved = append(result.Unresolved, tok)
		case o.inst == nil:
			result.Unresolved = append(result.Unresolved, tok)
		case seen[o.inst.Symbol] || b.list.Contains(o.inst.Symbol):
			result.Duplicates = append(result.Duplicates, tok)
		default:
			seen[o.inst.Symbol] = true
			result.Added = append(result.Added, *o.inst)
		}
	}

	if len(result.Added) > 0 {
		if _, err := b.list.AddBatch(result.Added); err != nil {
			logger.ErrorWithErr(ctx, "Watchlist batch write failed", err)
		}
	}

	b.notifySummary(ctx, result)
	return result
}

func splitTokens(input string) []string {
	var tokens []string
	for _, raw := range strings.Split(input, ",") {
		if tok := strings.TrimSpace(raw); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func (b *BatchResolver) notifySummary(ctx context.Context, r Result) {
	if b.notifier == nil {
		return
	}

	parts := []string{fmt.Sprintf("%d added", len(r.Added))}
	if len(r.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("%d already watched", len(r.Duplicates)))
	}
	if len(r.Unresolved) > 0 {
		parts = append(parts, fmt.Sprintf("%d not found", len(r.Unresolved)))
	}

	kind := types.NotifySuccess
	if len(r.Added) == 0 {
		kind = types.NotifyInfo
	}
	_ = b.notifier.Notify(ctx, "Watchlist update", strings.Join(parts, ", "), kind)
}
