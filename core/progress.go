package core

import (
	"strconv"
	"strings"
)

// ProgressTracker counts processed SiteURIs across every batch of a run and
// forwards each step to the sink.
type ProgressTracker struct {
	sink  ProgressFunc
	label string
	count int
	total int
	calls int
}

func NewProgressTracker(sink ProgressFunc, label string, total int) *ProgressTracker {
	if strings.TrimSpace(label) == "" {
		label = DefaultProgressLabel
	}
	return &ProgressTracker{sink: sink, label: label, total: total}
}

// Start emits the initial (0, total) step.
func (p *ProgressTracker) Start() {
	p.emit()
}

// Advance counts one more SiteURI. It fires before the snapshot is fetched.
func (p *ProgressTracker) Advance() {
	if p == nil {
		return
	}
	p.count++
	p.emit()
}

func (p *ProgressTracker) Count() int {
	if p == nil {
		return 0
	}
	return p.count
}

func (p *ProgressTracker) Calls() int {
	if p == nil {
		return 0
	}
	return p.calls
}

func (p *ProgressTracker) emit() {
	if p == nil {
		return
	}
	p.calls++
	if p.sink == nil {
		return
	}
	p.sink(p.count, p.total, FormatProgressLabel(p.label, p.count, p.total))
}

func FormatProgressLabel(label string, count int, total int) string {
	return strings.NewReplacer(
		"{count}", strconv.Itoa(count),
		"{total}", strconv.Itoa(total),
	).Replace(label)
}
