package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/scanner"
)

type pageSource map[string]string

func (p pageSource) Load(_ context.Context, target string) (*dom.Document, error) {
	markup, ok := p[target]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return dom.ParseString(markup, target)
}

type digestSink struct {
	mu      sync.Mutex
	digests []string
}

func (d *digestSink) PublishDigest(_ context.Context, digest string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.digests = append(d.digests, digest)
	return nil
}

func (d *digestSink) Digests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.digests...)
}

// immediateDriver fires the job once, synchronously.
type immediateDriver struct{ stopped bool }

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	job(time.Now())
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunOnce(t *testing.T) {
	reg := scanner.NewRegistry(nil)
	require.NoError(t, reg.Register("1.1.1", findings("a")))
	auditor, err := NewAuditor(AuditorDeps{Registry: reg})
	require.NoError(t, err)

	sink := &digestSink{}
	s := NewScheduler(SchedulerDeps{
		Auditor:  auditor,
		Source:   pageSource{"https://a.example/": "<title>A</title>", "https://b.example/": "<title>B</title>"},
		Notifier: sink,
		Targets:  []string{"https://a.example/", "https://down.example/", "https://b.example/"},
	})

	err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down.example")

	digests := sink.Digests()
	require.Len(t, digests, 2, "a failing target does not stop the others")
	assert.Contains(t, digests[0], "*A*")
	assert.Contains(t, digests[1], "*B*")
	assert.Contains(t, digests[1], "오류 1")
}

func TestSchedulerStartStop(t *testing.T) {
	reg := scanner.NewRegistry(nil)
	auditor, err := NewAuditor(AuditorDeps{Registry: reg})
	require.NoError(t, err)

	sink := &digestSink{}
	driver := &immediateDriver{}
	s := NewScheduler(SchedulerDeps{
		Driver:   driver,
		Auditor:  auditor,
		Source:   pageSource{"https://a.example/": "<title>A</title>"},
		Notifier: sink,
		Targets:  []string{"https://a.example/"},
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, sink.Digests(), 1)
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)

	assert.NoError(t, NewScheduler(SchedulerDeps{}).Start(context.Background()))
	assert.Error(t, NewScheduler(SchedulerDeps{}).RunOnce(context.Background()))
}
