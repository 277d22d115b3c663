package onehot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pdbgraph/pkg/contract"
)

func TestEmbedDefault(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)
	require.Equal(t, 20, e.Dim())
	x, err := e.Embed(context.Background(), "AYX")
	require.NoError(t, err)
	require.Len(t, x, 3)
	require.Equal(t, float32(1), x[0][0])
	require.Equal(t, float32(1), x[1][19])
	for _, v := range x[2] {
		require.Zero(t, v)
	}
	// 每行至多一个 1
	for _, row := range x {
		var sum float32
		for _, v := range row {
			sum += v
		}
		require.LessOrEqual(t, sum, float32(1))
	}
}

func TestEmbedExtraColumn(t *testing.T) {
	e, err := New(&Options{Alphabet: "acg", Unknown: "extra"})
	require.NoError(t, err)
	require.Equal(t, 4, e.Dim())
	x, err := e.Embed(context.Background(), "gTa")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0, 0, 1, 0}, {0, 0, 0, 1}, {1, 0, 0, 0}}, x)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(&Options{Alphabet: "AA"})
	require.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = New(&Options{Unknown: "drop"})
	require.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestEmbedEmpty(t *testing.T) {
	e, _ := New(nil)
	x, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, x)
}
