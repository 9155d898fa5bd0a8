package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOptionsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := Options{
		HashMB:           256,
		Threads:          8,
		MultiPV:          3,
		EvalFile:         "/nets/lumen.bin",
		SyzygyPath:       "/tb/syzygy",
		SyzygyProbeDepth: 4,
		Chess960:         true,
	}
	if err := s.SaveOptions(want); err != nil {
		t.Fatalf("SaveOptions: %v", err)
	}

	if got := s.LoadOptions(); got != want {
		t.Errorf("LoadOptions = %+v, want %+v", got, want)
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	s := openTestStore(t)
	if got := s.LoadOptions(); got != DefaultOptions() {
		t.Errorf("fresh store returned %+v", got)
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	if got := s.LoadOptions(); got != DefaultOptions() {
		t.Error("nil store should return defaults")
	}
	if err := s.SaveOptions(DefaultOptions()); err != nil {
		t.Errorf("nil store save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store close: %v", err)
	}
}

func TestVerifyNetFile(t *testing.T) {
	s := openTestStore(t)

	path := filepath.Join(t.TempDir(), "weights.bin")
	if err := os.WriteFile(path, []byte("not real weights but stable bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum1, err := s.VerifyNetFile(path)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}

	// Unchanged file: the cached record answers without re-hashing, and the
	// checksum is stable.
	sum2, err := s.VerifyNetFile(path)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if sum1 != sum2 {
		t.Errorf("checksum changed for unchanged file: %x vs %x", sum1, sum2)
	}

	// Changed content gives a different checksum.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("different bytes entirely this time"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum3, err := s.VerifyNetFile(path)
	if err != nil {
		t.Fatalf("third verify: %v", err)
	}
	if sum3 == sum1 {
		t.Error("checksum identical after content change")
	}

	if _, err := s.VerifyNetFile(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("missing file should error")
	}
}
