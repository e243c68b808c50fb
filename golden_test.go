package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type goldenCase struct {
	File   string `json:"file"`
	Stdout string `json:"stdout"`
	Status int    `json:"status"`
}

// TestGolden replays testdata/golden.json, produced offline by
// scripts/gengolden.go against the built cmd binary, through the
// in-process Compile/NewVM pipeline and checks they still agree.
func TestGolden(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "golden.json"))
	if os.IsNotExist(err) {
		t.Skip("testdata/golden.json not generated; run scripts/gengolden.go")
	}
	require.NoError(t, err)

	var cases []goldenCase
	require.NoError(t, json.Unmarshal(raw, &cases))
	require.NotEmpty(t, cases)

	for _, gc := range cases {
		gc := gc
		t.Run(gc.File, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("testdata", gc.File))
			require.NoError(t, err)

			result, err := Compile(context.Background(), src)
			require.NoError(t, err)

			var out bytes.Buffer
			vm := NewVM(result, WithStdout(&out))
			status, err := vm.Run(context.Background())
			require.NoError(t, err)

			require.Equal(t, gc.Stdout, out.String())
			require.Equal(t, gc.Status, status)
		})
	}
}
