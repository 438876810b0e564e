package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

func TestStatusFilter(t *testing.T) {
	all := statusFilter("")
	assert.True(t, all(domain.StatusFinished))

	some := statusFilter(" awaiting_parts, QUEUED ,")
	assert.True(t, some(domain.StatusAwaitingParts))
	assert.True(t, some(domain.StatusQueued))
	assert.False(t, some(domain.StatusFinished))
}

func TestRootCommandFlags(t *testing.T) {
	for _, name := range []string{"status", "signals", "max-attempts"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}
}
