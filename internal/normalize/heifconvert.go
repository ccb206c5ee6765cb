package normalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/andresmejia3/imagedrop/internal/utils"
)

// CommandTranscoder shells out to libheif's heif-convert.
type CommandTranscoder struct {
	Command string
	Quality int
}

// NewCommandTranscoder returns a transcoder for the given heif-convert binary.
func NewCommandTranscoder(command string, quality int) *CommandTranscoder {
	return &CommandTranscoder{Command: command, Quality: quality}
}

// Transcode writes the container to a scratch directory, converts it and
// returns every JPEG produced, primary image first.
func (c *CommandTranscoder) Transcode(ctx context.Context, blob []byte) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "imagedrop-heic-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.heic")
	if err := os.WriteFile(in, blob, 0600); err != nil {
		return nil, fmt.Errorf("failed to write scratch input: %w", err)
	}
	out := filepath.Join(dir, "output.jpg")

	cmd := utils.NewSafeCommand(ctx, c.Command, "-q", strconv.Itoa(c.Quality), in, out)
	if err := cmd.Run(); err != nil {
		if logs := strings.TrimSpace(cmd.Logs()); logs != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", c.Command, err, logs)
		}
		return nil, fmt.Errorf("%s failed: %w", c.Command, err)
	}

	paths, err := collectOutputs(dir)
	if err != nil {
		return nil, err
	}

	blobs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read transcoded image: %w", err)
		}
		blobs = append(blobs, data)
	}
	return blobs, nil
}

// collectOutputs finds output.jpg, or output-1.jpg, output-2.jpg, ... when the
// container held several top-level images.
func collectOutputs(dir string) ([]string, error) {
	single := filepath.Join(dir, "output.jpg")
	if _, err := os.Stat(single); err == nil {
		return []string{single}, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "output-*.jpg"))
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	var found []numbered
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "output-"), ".jpg")
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, path: m})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}
