package akasha

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"
)

// BatchItem is one input to LearnBatch. A bare string becomes an item with
// only Text set.
type BatchItem struct {
	Text        string `json:"text"`
	ContextID   string `json:"contextId,omitempty"`
	ContextName string `json:"contextName,omitempty"`
	ValidFrom   string `json:"validFrom,omitempty"`
	ValidTo     string `json:"validTo,omitempty"`
}

// BatchProgress is passed to the progress callback after every item,
// whether it succeeded or failed.
type BatchProgress struct {
	Current                  int    `json:"current"`
	Total                    int    `json:"total"`
	Completed                int    `json:"completed"`
	Failed                   int    `json:"failed"`
	CurrentText              string `json:"currentText"`
	EstimatedTimeRemainingMs int64  `json:"estimatedTimeRemainingMs"`
}

// BatchFailure records one failed item; the batch continues past it.
type BatchFailure struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

// BatchResult aggregates a whole batch run.
type BatchResult struct {
	Total                int            `json:"total"`
	Completed            int            `json:"completed"`
	Failed               int            `json:"failed"`
	Failures             []BatchFailure `json:"failures,omitempty"`
	DocumentsCreated     int            `json:"documentsCreated"`
	DocumentsReused      int            `json:"documentsReused"`
	EntitiesCreated      int            `json:"entitiesCreated"`
	RelationshipsCreated int            `json:"relationshipsCreated"`
	ElapsedMs            int64          `json:"elapsedMs"`
}

// ProgressFunc observes batch progress. It must be fast; it runs inline
// between items.
type ProgressFunc func(BatchProgress)

// progressTextLimit caps the text echoed back through the callback.
const progressTextLimit = 200

// LearnBatch runs Learn sequentially over items, so later items dedup
// against entities created by earlier ones. Failures are recorded and
// skipped; the batch never aborts early. The ETA is the mean duration of
// completed items times the remaining count.
func (e *Engine) LearnBatch(ctx context.Context, items []BatchItem, base LearnOptions, progress ProgressFunc) (*BatchResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	result := &BatchResult{Total: len(items)}
	start := time.Now()
	var completedDuration time.Duration

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		opts := base
		if item.ContextID != "" {
			opts.ContextID = item.ContextID
		}
		if item.ContextName != "" {
			opts.ContextName = item.ContextName
		}
		if item.ValidFrom != "" {
			opts.ValidFrom = item.ValidFrom
		}
		if item.ValidTo != "" {
			opts.ValidTo = item.ValidTo
		}

		itemStart := time.Now()
		learned, err := e.Learn(ctx, item.Text, opts)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{
				Index: i,
				Text:  truncateText(item.Text, progressTextLimit),
				Error: err.Error(),
			})
			slog.Warn("batch: item failed", "index", i, "error", err)
		} else {
			result.Completed++
			completedDuration += time.Since(itemStart)
			if learned.Created.Document == 1 {
				result.DocumentsCreated++
			} else {
				result.DocumentsReused++
			}
			result.EntitiesCreated += learned.Created.Entities
			result.RelationshipsCreated += learned.Created.Relationships
		}

		if progress != nil {
			progress(BatchProgress{
				Current:                  i + 1,
				Total:                    len(items),
				Completed:                result.Completed,
				Failed:                   result.Failed,
				CurrentText:              truncateText(item.Text, progressTextLimit),
				EstimatedTimeRemainingMs: estimateRemaining(completedDuration, result.Completed, len(items)-(i+1)),
			})
		}
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	slog.Info("batch: complete",
		"total", result.Total,
		"completed", result.Completed,
		"failed", result.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func estimateRemaining(completed time.Duration, completedCount, remaining int) int64 {
	if completedCount == 0 || remaining <= 0 {
		return 0
	}
	avg := completed / time.Duration(completedCount)
	return (avg * time.Duration(remaining)).Milliseconds()
}

// truncateText cuts s to at most n bytes on a rune boundary.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
