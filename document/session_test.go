package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mutext/store"
)

func newTestSession(t *testing.T, opts ...Option) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := store.NewConfigStore(filepath.Join(dir, store.ConfigFileName), nil)
	scratch := store.NewScratchStore(filepath.Join(dir, store.ScratchFileName), nil)
	return NewSession(cfg, scratch, opts...), dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewSessionIsCleanAndUnbound(t *testing.T) {
	s, _ := newTestSession(t)
	st := s.State()
	if st.ID == "" {
		t.Fatal("expected a session ID")
	}
	if st.Dirty || st.Path != "" || st.Title != "New File - MuText" {
		t.Fatalf("unexpected initial state: %+v", st)
	}
}

func TestEditMarksDirty(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetText("a")
	if !s.Dirty() {
		t.Fatal("expected dirty after SetText")
	}
	s.MarkDirty()
	s.MarkDirty()
	if !s.Dirty() {
		t.Fatal("MarkDirty is not idempotent")
	}
	s.Insert("b")
	if got := s.Snapshot(); got != "ab" {
		t.Fatalf("expected %q, got %q", "ab", got)
	}
}

func TestNewArchivesUnboundContent(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetText("Hello $x^2$")
	s.New()

	if got := s.Snapshot(); got != "" {
		t.Fatalf("expected empty buffer, got %q", got)
	}
	if s.Dirty() {
		t.Fatal("expected clean session after New")
	}
	if diff := cmp.Diff([]string{"Hello $x^2$"}, s.ScratchEntries()); diff != "" {
		t.Fatalf("scratch mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDoesNotArchiveEmptyOrBound(t *testing.T) {
	s, dir := newTestSession(t)
	s.New()
	if n := len(s.ScratchEntries()); n != 0 {
		t.Fatalf("empty buffer archived: %d entries", n)
	}

	path := filepath.Join(dir, "doc.txt")
	writeFile(t, path, "on disk")
	if err := s.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetText("edited")
	s.New()
	if n := len(s.ScratchEntries()); n != 0 {
		t.Fatalf("bound document archived: %d entries", n)
	}
	if s.Path() != "" {
		t.Fatal("New did not unbind the path")
	}
}

func TestOpenBindsAndPromotes(t *testing.T) {
	s, dir := newTestSession(t)
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")
	writeFile(t, a, "<p>a</p>")
	writeFile(t, b, "<p>b</p>")

	s.Open(a)
	s.Open(b)
	s.SetText("dirty")
	if err := s.Open(a); err != nil {
		t.Fatalf("Open: %v", err)
	}

	st := s.State()
	if st.Path != a || st.Dirty || st.Title != "a.html - MuText" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if s.Snapshot() != "<p>a</p>" {
		t.Fatalf("unexpected buffer %q", s.Snapshot())
	}
	if diff := cmp.Diff([]string{a, b}, s.RecentFiles()); diff != "" {
		t.Fatalf("recent mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenFailureLeavesSessionUnchanged(t *testing.T) {
	s, dir := newTestSession(t)
	s.SetText("keep me")

	err := s.Open(filepath.Join(dir, "missing.txt"))
	if !errors.Is(err, ErrReadFailed) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrReadFailed wrapping ErrNotExist, got %v", err)
	}

	binary := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(binary, []byte{0xff, 0xfe, 0x00, 0x80}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(binary); !errors.Is(err, ErrNotText) {
		t.Fatalf("expected ErrNotText, got %v", err)
	}

	if s.Snapshot() != "keep me" || !s.Dirty() || s.Path() != "" {
		t.Fatalf("session changed after failed open: %+v", s.State())
	}
	if len(s.RecentFiles()) != 0 {
		t.Fatalf("failed open touched recent files: %v", s.RecentFiles())
	}
}

func TestSaveUnboundRequiresPath(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetText("x")
	if err := s.Save(); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}

func TestSaveAsWritesVerbatimAndBinds(t *testing.T) {
	s, dir := newTestSession(t)
	path := filepath.Join(dir, "out.txt")
	s.SetText("line one\nline two")

	if err := s.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "line one\nline two" {
		t.Fatalf("file content %q", data)
	}
	if s.Dirty() || s.Path() != path {
		t.Fatalf("unexpected state after SaveAs: %+v", s.State())
	}

	s.Insert("\nthree")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "line one\nline two\nthree" {
		t.Fatalf("file content %q", data)
	}
	if s.RecentFiles()[0] != path {
		t.Fatalf("saved path not at front: %v", s.RecentFiles())
	}
}

func TestSaveIntoRemovedDirectory(t *testing.T) {
	s, dir := newTestSession(t)
	sub := filepath.Join(dir, "gone")
	os.Mkdir(sub, 0755)
	path := filepath.Join(sub, "doc.txt")
	s.SetText("x")
	if err := s.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	os.RemoveAll(sub)

	s.Insert("y")
	err := s.Save()
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	if !s.Dirty() || s.Path() != path {
		t.Fatalf("failed save changed state: %+v", s.State())
	}
	if _, err := os.Stat(sub); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("save recreated the removed directory")
	}
}

func TestRecentFilesInvariant(t *testing.T) {
	s, dir := newTestSession(t)
	var last string
	for i := 0; i < 25; i++ {
		last = filepath.Join(dir, fmt.Sprintf("f%d.txt", i%13))
		s.SetText(last)
		if i%2 == 0 {
			if err := s.SaveAs(last); err != nil {
				t.Fatalf("SaveAs: %v", err)
			}
		} else {
			writeFile(t, last, "x")
			if err := s.Open(last); err != nil {
				t.Fatalf("Open: %v", err)
			}
		}

		recent := s.RecentFiles()
		if len(recent) > store.MaxRecentFiles {
			t.Fatalf("recent files exceeds cap: %d", len(recent))
		}
		seen := map[string]bool{}
		for _, p := range recent {
			if seen[p] {
				t.Fatalf("duplicate %q in %v", p, recent)
			}
			seen[p] = true
		}
		if recent[0] != last {
			t.Fatalf("expected %q at front, got %v", last, recent)
		}
	}
}

func TestOpenRecentRequiresConfirmation(t *testing.T) {
	s, dir := newTestSession(t)
	path := filepath.Join(dir, "r.txt")
	writeFile(t, path, "recent")
	s.Open(path)
	s.New()

	if err := s.OpenRecent(path, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if s.Snapshot() != "" {
		t.Fatal("unconfirmed open changed the buffer")
	}
	if err := s.OpenRecent(filepath.Join(dir, "other.txt"), true); !errors.Is(err, ErrNotRecent) {
		t.Fatalf("expected ErrNotRecent, got %v", err)
	}
	if err := s.OpenRecent(path, true); err != nil {
		t.Fatalf("OpenRecent: %v", err)
	}
	if s.Snapshot() != "recent" {
		t.Fatalf("unexpected buffer %q", s.Snapshot())
	}
}

func TestProposedSaveName(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	s, _ := newTestSession(t, WithClock(func() time.Time { return fixed }))
	if got := s.ProposedSaveName(); got != "2024-03-09.txt" {
		t.Fatalf("expected 2024-03-09.txt, got %q", got)
	}
}

func TestBindHook(t *testing.T) {
	var bound []string
	s, dir := newTestSession(t, WithBindHook(func(p string) { bound = append(bound, p) }))
	path := filepath.Join(dir, "h.txt")
	writeFile(t, path, "h")

	s.Open(path)
	s.Save()
	s.New()
	if diff := cmp.Diff([]string{path, ""}, bound); diff != "" {
		t.Fatalf("bind hook calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReload(t *testing.T) {
	s, dir := newTestSession(t)
	path := filepath.Join(dir, "w.txt")
	writeFile(t, path, "v1")
	s.Open(path)

	writeFile(t, path, "v2")
	if err := s.Reload(path); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Snapshot() != "v2" || s.Dirty() {
		t.Fatalf("unexpected state after reload: %q dirty=%v", s.Snapshot(), s.Dirty())
	}

	s.Insert(" local")
	writeFile(t, path, "v3")
	if err := s.Reload(path); !errors.Is(err, ErrDirty) {
		t.Fatalf("expected ErrDirty, got %v", err)
	}
	if s.Snapshot() != "v2 local" {
		t.Fatalf("dirty buffer overwritten: %q", s.Snapshot())
	}

	if err := s.Reload(filepath.Join(dir, "w.txt")); !errors.Is(err, ErrDirty) {
		t.Fatalf("expected ErrDirty, got %v", err)
	}
}

func TestCloseClean(t *testing.T) {
	s, _ := newTestSession(t)
	closed, err := s.Close(CloseCancel, "")
	if !closed || err != nil {
		t.Fatalf("clean session should close: closed=%v err=%v", closed, err)
	}
}

func TestCloseCancelKeepsDocument(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetText("unsaved")
	closed, err := s.Close(CloseCancel, "")
	if closed || err != nil {
		t.Fatalf("cancel should abort close: closed=%v err=%v", closed, err)
	}
	if s.Snapshot() != "unsaved" || !s.Dirty() {
		t.Fatal("cancel changed the document")
	}
}

func TestCloseSaveUnbound(t *testing.T) {
	s, dir := newTestSession(t)
	s.SetText("keep")

	closed, err := s.Close(CloseSave, "")
	if closed || !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired and no close, got closed=%v err=%v", closed, err)
	}

	path := filepath.Join(dir, "final.txt")
	closed, err = s.Close(CloseSave, path)
	if !closed || err != nil {
		t.Fatalf("expected close after save: closed=%v err=%v", closed, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestCloseDiscardFlushesScratch(t *testing.T) {
	s, dir := newTestSession(t)
	s.SetText("draft")
	s.New()
	s.SetText("thrown away")

	closed, err := s.Close(CloseDiscard, "")
	if !closed || err != nil {
		t.Fatalf("discard should close: closed=%v err=%v", closed, err)
	}
	reloaded := store.NewScratchStore(filepath.Join(dir, store.ScratchFileName), nil)
	if diff := cmp.Diff([]string{"draft"}, reloaded.Entries()); diff != "" {
		t.Fatalf("scratch on disk mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCloseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want CloseDecision
		ok   bool
	}{
		{"save", CloseSave, true},
		{"discard", CloseDiscard, true},
		{"cancel", CloseCancel, true},
		{"", CloseCancel, true},
		{"maybe", CloseCancel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCloseDecision(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParseCloseDecision(%q) = %v, %v", tt.in, got, ok)
			}
		})
	}
}

func TestReloadIgnoresOwnWrites(t *testing.T) {
	s, dir := newTestSession(t)
	path := filepath.Join(dir, "own.txt")
	s.SetText("mine")
	if err := s.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(path); err != nil {
		t.Fatalf("Reload after own save: %v", err)
	}
	if s.Snapshot() != "mine" || s.Dirty() {
		t.Fatalf("own save changed the buffer: %q dirty=%v", s.Snapshot(), s.Dirty())
	}

	// An edit made after the save is not a conflict with the save itself.
	s.Insert(" and more")
	if err := s.Reload(path); err != nil {
		t.Fatalf("Reload of own save while dirty: %v", err)
	}
	if s.Snapshot() != "mine and more" || !s.Dirty() {
		t.Fatalf("unexpected state: %q dirty=%v", s.Snapshot(), s.Dirty())
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s, _ := newTestSession(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	s.SetText("x")
	for i := 0; i < 5; i++ {
		if err := s.SaveAs(path); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only doc.txt, got %v", entries)
	}
}

func TestOnChange(t *testing.T) {
	s, dir := newTestSession(t)
	path := filepath.Join(dir, "c.txt")
	writeFile(t, path, "v1")

	calls := 0
	cancel := s.OnChange(func() { calls++ })

	s.SetText("typed")
	if calls != 0 {
		t.Fatalf("SetText notified %d times", calls)
	}
	s.Open(path)
	s.Insert("!")
	s.Save()
	writeFile(t, path, "v2")
	s.Reload(path)
	s.New()
	if calls != 4 {
		t.Fatalf("expected 4 notifications (open, insert, reload, new), got %d", calls)
	}

	cancel()
	s.Insert("after")
	if calls != 4 {
		t.Fatalf("cancelled listener still called")
	}
}

// newSessionWithBrokenConfig returns a session whose config file can no
// longer be written.
func newSessionWithBrokenConfig(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "cfg")
	cfg := store.NewConfigStore(filepath.Join(cfgDir, store.ConfigFileName), nil)
	scratch := store.NewScratchStore(filepath.Join(dir, store.ScratchFileName), nil)
	s := NewSession(cfg, scratch)

	os.RemoveAll(cfgDir)
	writeFile(t, cfgDir, "not a directory")
	return s, dir
}

func TestOpenConfigFailureLeavesSessionUnchanged(t *testing.T) {
	s, dir := newSessionWithBrokenConfig(t)
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "on disk")
	s.SetText("in memory")

	err := s.Open(path)
	if !errors.Is(err, store.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if s.Snapshot() != "in memory" || s.Path() != "" || !s.Dirty() {
		t.Fatalf("session changed by failed open: %+v", s.State())
	}
}

func TestSaveAsConfigFailureStillSaves(t *testing.T) {
	s, dir := newSessionWithBrokenConfig(t)
	path := filepath.Join(dir, "b.txt")
	s.SetText("kept")

	if err := s.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if s.Dirty() || s.Path() != path {
		t.Fatalf("unexpected state: %+v", s.State())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "kept" {
		t.Fatalf("file content %q", data)
	}
}
