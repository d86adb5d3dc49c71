package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/promptops/batchrelay/internal/errors"
)

func TestOutputPathFor(t *testing.T) {
	got, err := outputPathFor(filepath.Join("data", "queue.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "batch_queue_output.jsonl"), got)

	got, err = outputPathFor("queue.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "batch_queue_output.jsonl", got)

	_, err = outputPathFor("queue.csv")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
}
