package positions

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/observability"
)

func TestFileStoreLoadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := s.Load(context.Background(), "flt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Load of missing project = %v, want empty map", got)
	}
}

func TestFileStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	_ = s.Save(ctx, "p", map[string]geom.Vec3{"a": {X: 1}, "b": {Y: 2}})
	if err := s.Save(ctx, "p", map[string]geom.Vec3{"c": {Z: 3}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := s.Load(ctx, "p")
	if len(got) != 1 || got["c"].Z != 3 {
		t.Errorf("Save should replace, got %v", got)
	}
}

func TestFileStoreMerge(t *testing.T) {
	tests := []struct {
		name      string
		existing  map[string]geom.Vec3
		update    map[string]geom.Vec3
		wantCount int
		want      map[string]geom.Vec3
	}{
		{
			name:      "into empty",
			update:    map[string]geom.Vec3{"a": {X: 1}},
			wantCount: 1,
			want:      map[string]geom.Vec3{"a": {X: 1}},
		},
		{
			name:      "overwrite and keep",
			existing:  map[string]geom.Vec3{"a": {X: 1}, "b": {X: 2}},
			update:    map[string]geom.Vec3{"b": {X: 20}, "c": {X: 3}},
			wantCount: 3,
			want:      map[string]geom.Vec3{"a": {X: 1}, "b": {X: 20}, "c": {X: 3}},
		},
		{
			name:      "empty update",
			existing:  map[string]geom.Vec3{"a": {X: 1}},
			wantCount: 1,
			want:      map[string]geom.Vec3{"a": {X: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := NewFileStore(t.TempDir())
			if tt.existing != nil {
				_ = s.Save(ctx, "p", tt.existing)
			}

			n, err := s.Merge(ctx, "p", tt.update)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if n != tt.wantCount {
				t.Errorf("count = %d, want %d", n, tt.wantCount)
			}
			got, _ := s.Load(ctx, "p")
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, p := range tt.want {
				if got[id] != p {
					t.Errorf("%s = %v, want %v", id, got[id], p)
				}
			}
		})
	}
}

func TestFileStoreRejectsNonFinite(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	bad := map[string]geom.Vec3{"a": {X: math.NaN()}}
	if err := s.Save(ctx, "p", bad); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Save error = %v, want ErrInvalidPosition", err)
	}
	if _, err := s.Merge(ctx, "p", bad); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Merge error = %v, want ErrInvalidPosition", err)
	}
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "p.json"), []byte("{oops"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(context.Background(), "p")
	if err != nil || len(got) != 0 {
		t.Errorf("corrupt file should load as empty, got %v, %v", got, err)
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	_ = s.Save(ctx, "p", map[string]geom.Vec3{"a": {}})

	if err := s.Delete(ctx, "p"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "p"); err != nil {
		t.Errorf("second Delete should be a no-op: %v", err)
	}
	got, _ := s.Load(ctx, "p")
	if len(got) != 0 {
		t.Errorf("deleted project should be empty, got %v", got)
	}
}

func TestFileStoreConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			_, _ = s.Merge(ctx, "p", map[string]geom.Vec3{id: {X: float64(i)}})
		}()
	}
	wg.Wait()

	got, _ := s.Load(ctx, "p")
	if len(got) != 20 {
		t.Errorf("concurrent merges lost updates: %d positions", len(got))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	defer s.Close()

	none, err := Open(ctx, Options{Backend: BackendNone})
	if err != nil {
		t.Fatalf("Open none: %v", err)
	}
	if n, _ := none.Merge(ctx, "p", map[string]geom.Vec3{"a": {}}); n != 1 {
		t.Errorf("NullStore merge count = %d", n)
	}

	if _, err := Open(ctx, Options{Backend: "etcd"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("unknown backend error = %v", err)
	}
}

func TestInstrumentReportsOperations(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	hooks := &recordingHooks{}
	observability.SetStoreHooks(hooks)

	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())
	s := Instrument(fs, "file")

	_ = s.Save(ctx, "p", map[string]geom.Vec3{"a": {}, "b": {}})
	_, _ = s.Merge(ctx, "p", map[string]geom.Vec3{"c": {}})
	_, _ = s.Load(ctx, "p")

	if hooks.saves != 2 || hooks.loads != 1 {
		t.Errorf("saves=%d loads=%d, want 2 and 1", hooks.saves, hooks.loads)
	}
	if hooks.lastLoadCount != 3 {
		t.Errorf("load count = %d, want 3", hooks.lastLoadCount)
	}
}

func TestMongoEntriesRoundTrip(t *testing.T) {
	in := map[string]geom.Vec3{
		"Nat.add_comm": {X: 1, Y: 2, Z: 3},
		"Nat.add":      {X: -1},
	}
	entries := toEntries(in)
	if entries[0].Node != "Nat.add" {
		t.Errorf("entries should be sorted by node, got %s first", entries[0].Node)
	}
	out := fromEntries(entries)
	for id, p := range in {
		if out[id] != p {
			t.Errorf("%s = %v, want %v", id, out[id], p)
		}
	}
}

func TestDialRedisInvalidURL(t *testing.T) {
	if _, err := DialRedis(context.Background(), "::not a url", ""); err == nil {
		t.Error("expected parse error")
	}
}

type recordingHooks struct {
	mu            sync.Mutex
	loads, saves  int
	lastLoadCount int
}

func (h *recordingHooks) OnLoad(_ context.Context, _ string, count int, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads++
	h.lastLoadCount = count
}

func (h *recordingHooks) OnSave(context.Context, string, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves++
}
