// Command gengolden compiles and runs every testdata/*.c fixture against
// the real cmd binary and records each one's observed exit status and
// stdout into testdata/golden.json, which golden_test.go's TestGolden
// then replays through the in-process Compile/NewVM pipeline to check
// that the package API agrees with the command-line tool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type goldenCase struct {
	File   string `json:"file"`
	Stdout string `json:"stdout"`
	Status int    `json:"status"`
}

func main() {
	dir := flag.String("dir", "testdata", "directory holding *.c fixtures")
	out := flag.String("out", "testdata/golden.json", "path to write golden.json")
	flag.Parse()

	if err := run(*dir, *out); err != nil {
		log.Fatalln(err)
	}
}

func run(dir, out string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.c"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	results := make([]goldenCase, len(files))

	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			gc, err := runOne(ctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			results[i] = gc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(data, '\n'), 0644)
}

func runOne(ctx context.Context, file string) (goldenCase, error) {
	root := filepath.Dir(filepath.Dir(file)) // module root, one level above testdata
	// go run reports every nonzero exit as status 1, so build the command
	// and run the binary itself to observe the program's own status.
	bin := filepath.Join(os.TempDir(), "gengolden-"+filepath.Base(file))
	build := exec.CommandContext(ctx, "go", "build", "-o", bin, ".")
	build.Dir = root
	if msg, err := build.CombinedOutput(); err != nil {
		return goldenCase{}, fmt.Errorf("build: %v: %s", err, msg)
	}
	defer os.Remove(bin)

	cmd := exec.CommandContext(ctx, bin, file)
	cmd.Dir = root
	out, err := cmd.Output()
	status := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		status = exitErr.ExitCode()
	} else if err != nil {
		return goldenCase{}, err
	}
	return goldenCase{File: filepath.Base(file), Stdout: string(out), Status: status}, nil
}
