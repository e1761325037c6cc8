package main

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/kailas-cloud/partcat/internal/domain/classification"
)

// progressBar renders run progress. Each phase (embedding, LLM waves) reports
// its own total, so the bar is reset when the total or message changes.
type progressBar struct {
	w       io.Writer
	bar     *progressbar.ProgressBar
	total   int
	message string
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

func (p *progressBar) reset(total int, message string) {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
	p.total = total
	p.message = message
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(message),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("products"),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
	)
}

// Func adapts the bar to the engine's progress callback.
func (p *progressBar) Func() classification.ProgressFunc {
	return func(_ context.Context, pr classification.Progress) {
		if p.bar == nil || pr.Total != p.total || pr.Message != p.message {
			p.reset(pr.Total, pr.Message)
		}
		_ = p.bar.Set(pr.Processed)
	}
}

// Finish closes the current bar, if any.
func (p *progressBar) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
