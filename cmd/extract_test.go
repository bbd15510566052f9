package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminous-energy/plant-cli/internal/config"
)

func TestExtractOne_UnsupportedExtension(t *testing.T) {
	res := extractOne(context.Background(), nil, "notes.txt")
	assert.Equal(t, "notes.txt", res.File)
	assert.Contains(t, res.Error, "unsupported file type")
	assert.Nil(t, res.Result)
}

func TestExtractOne_MissingFile(t *testing.T) {
	res := extractOne(context.Background(), nil, "does-not-exist.pdf")
	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.Result)
}

func TestLoadCalculator_EmbeddedDefaults(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	calc, err := loadCalculator()
	require.NoError(t, err)

	q, err := calc.For("", 100)
	require.NoError(t, err)
	assert.Equal(t, "TWD", q.Currency)
	assert.Greater(t, q.Total, q.Subtotal)
}
