package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledPublisher(t *testing.T) {
	p, err := NewPublisher("", "")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.AttemptsSaved(context.Background(), "u1", []string{"a"}))
	assert.NoError(t, p.Close())
}

func TestNilPublisherIsDisabled(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Close())
}
