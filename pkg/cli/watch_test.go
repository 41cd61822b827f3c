package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestWatchFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "workflow.yml")
	other := filepath.Join(dir, "other.yml")
	gt.NoError(t, os.WriteFile(watched, []byte("v1"), 0o644))

	var reloads atomic.Int32
	err := watchFiles(ctx, map[string]func(context.Context) error{
		watched:             func(context.Context) error { reloads.Add(1); return nil },
		"gs://bucket/x.gff": func(context.Context) error { t.Error("object storage must not be watched"); return nil },
	})
	gt.NoError(t, err)

	// several writes within the debounce window cause a single reload
	for _, v := range []string{"v2", "v3", "v4"} {
		gt.NoError(t, os.WriteFile(watched, []byte(v), 0o644))
	}
	gt.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(2 * reloadDebounce)
	gt.Number(t, reloads.Load()).Equal(1)
}

func TestWatchFiles_MissingDirectory(t *testing.T) {
	err := watchFiles(context.Background(), map[string]func(context.Context) error{
		filepath.Join(t.TempDir(), "nowhere", "file.yml"): func(context.Context) error { return nil },
	})
	gt.Error(t, err)
}
