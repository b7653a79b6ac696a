package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studyhost/studyhost/internal/storage"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"index.html":           "index.html",
		"../../etc/passwd":     "passwd",
		"my experiment (1).js": "my_experiment__1_.js",
		"UPPER.HTML":           "UPPER.html",
		"weird;name|chars.css": "weird_name_chars.css",
		"/abs/path/to/task.js": "task.js",
	}
	for in, want := range cases {
		if got := storage.SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowedFile(t *testing.T) {
	allowed := []string{"index.html", "task.js", "style.css", "stim.png", "audio.MP3"}
	for _, name := range allowed {
		if !storage.AllowedFile(name) {
			t.Errorf("Expected %q to be allowed", name)
		}
	}
	denied := []string{"run.exe", "script.sh", "archive.zip", "noext"}
	for _, name := range denied {
		if storage.AllowedFile(name) {
			t.Errorf("Expected %q to be denied", name)
		}
	}
}

func TestSaveListDeleteAsset(t *testing.T) {
	store := storage.NewStore(t.TempDir())

	info, err := store.SaveAsset("exp-1", "index.html", strings.NewReader("<html></html>"))
	if err != nil {
		t.Fatalf("SaveAsset failed: %v", err)
	}
	if info.Filename != "index.html" || info.Size != 13 {
		t.Errorf("Unexpected file info: %+v", info)
	}

	files, err := store.ListAssets("exp-1")
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "index.html" {
		t.Fatalf("Expected one listed file, got %v", files)
	}

	f, err := store.OpenAsset("exp-1", "index.html")
	if err != nil {
		t.Fatalf("OpenAsset failed: %v", err)
	}
	f.Close()

	if err := store.DeleteAsset("exp-1", "index.html"); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}
	files, _ = store.ListAssets("exp-1")
	if len(files) != 0 {
		t.Errorf("Expected no files after delete, got %v", files)
	}
}

func TestSaveAssetRejectsDisallowedType(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	if _, err := store.SaveAsset("exp-1", "malware.exe", strings.NewReader("x")); err == nil {
		t.Error("Expected error for disallowed extension")
	}
}

func TestOpenAssetIsTraversalSafe(t *testing.T) {
	root := t.TempDir()
	store := storage.NewStore(root)

	secret := filepath.Join(root, "secret.txt")
	if err := os.WriteFile(secret, []byte("keep out"), 0o644); err != nil {
		t.Fatalf("Failed to write secret file: %v", err)
	}

	if _, err := store.OpenAsset("exp-1", "../../secret.txt"); err == nil {
		t.Error("Expected traversal attempt to miss the target file")
	}
}

func TestListAssetsExcludesDataDir(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	if _, err := store.SaveAsset("exp-1", "task.js", strings.NewReader("js")); err != nil {
		t.Fatalf("SaveAsset failed: %v", err)
	}
	if _, err := store.MirrorSession("exp-1", "sess-1", []byte(`{}`)); err != nil {
		t.Fatalf("MirrorSession failed: %v", err)
	}

	files, err := store.ListAssets("exp-1")
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "task.js" {
		t.Errorf("Expected only the asset, got %v", files)
	}
}

func TestListAssetsMissingDirIsEmpty(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	files, err := store.ListAssets("never-uploaded")
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected empty list, got %v", files)
	}
}

func TestRemoveSessionMirrors(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	if _, err := store.MirrorSession("exp-1", "sess-1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("MirrorSession failed: %v", err)
	}
	if _, err := store.MirrorSession("exp-1", "sess-2", []byte(`{"b":2}`)); err != nil {
		t.Fatalf("MirrorSession failed: %v", err)
	}

	if err := store.RemoveSessionMirrors("exp-1", "sess-1"); err != nil {
		t.Fatalf("RemoveSessionMirrors failed: %v", err)
	}

	remaining, _ := filepath.Glob(filepath.Join(store.DataDir("exp-1"), "*.json"))
	if len(remaining) != 1 || !strings.Contains(remaining[0], "sess-2") {
		t.Errorf("Expected only sess-2 mirrors to remain, got %v", remaining)
	}
}

func TestDirUsage(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	store.SaveAsset("exp-1", "a.txt", strings.NewReader("12345"))
	store.SaveAsset("exp-1", "b.txt", strings.NewReader("123"))

	size, count, err := storage.DirUsage(store.ExperimentDir("exp-1"))
	if err != nil {
		t.Fatalf("DirUsage failed: %v", err)
	}
	if size != 8 || count != 2 {
		t.Errorf("Expected size 8 / count 2, got %d / %d", size, count)
	}

	size, count, err = storage.DirUsage(filepath.Join(store.Root, "missing"))
	if err != nil {
		t.Fatalf("DirUsage on missing dir failed: %v", err)
	}
	if size != 0 || count != 0 {
		t.Errorf("Expected zero usage for missing dir, got %d / %d", size, count)
	}
}
