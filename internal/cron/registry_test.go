package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRunOrder(t *testing.T) {
	registry := NewRegistry()
	retention := &stubJob{name: "outbox_retention"}
	expiry := &stubJob{name: "payment_expiry"}
	require.NoError(t, registry.Register(retention))
	require.NoError(t, registry.Register(expiry))
	require.NoError(t, registry.Register(nil))

	assert.Equal(t, []string{"outbox_retention", "payment_expiry"}, registry.Names())

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "caller mutated the registry")
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "webhook_replay"})
	assert.Error(t, registry.Register(&stubJob{name: "webhook_replay"}))
	assert.Error(t, registry.Register(&stubJob{}))
	assert.Panics(t, func() { NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}) })
}
