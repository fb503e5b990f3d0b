package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAttachment(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	pub, err := s.SaveAttachment("report.pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("SaveAttachment failed: %v", err)
	}
	if !strings.HasPrefix(pub, "files/") || !strings.HasSuffix(pub, "/report.pdf") {
		t.Errorf("public path = %q, want files/<stamp>/report.pdf", pub)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(pub)))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("stored content = %q, want pdf-bytes", data)
	}
}

func TestSaveProfileImage(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	pub, err := s.SaveProfileImage("avatar.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("SaveProfileImage failed: %v", err)
	}
	if !strings.HasPrefix(pub, "profiles/") || !strings.HasSuffix(pub, "-avatar.png") {
		t.Errorf("public path = %q, want profiles/<stamp>-avatar.png", pub)
	}
}

func TestSanitizeStripsDirectories(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	pub, err := s.SaveAttachment("../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveAttachment failed: %v", err)
	}
	if strings.Contains(pub, "..") {
		t.Errorf("public path %q retains traversal components", pub)
	}
	if !strings.HasSuffix(pub, "/passwd") {
		t.Errorf("public path = %q, want bare filename at the end", pub)
	}
}

func TestRemove(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	pub, err := s.SaveProfileImage("avatar.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("SaveProfileImage failed: %v", err)
	}

	if err := s.Remove(pub); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), filepath.FromSlash(pub))); !os.IsNotExist(err) {
		t.Errorf("file still exists after Remove")
	}

	// Removing twice is a no-op.
	if err := s.Remove(pub); err != nil {
		t.Errorf("second Remove: %v", err)
	}

	if err := s.Remove("../outside"); err != ErrBadPath {
		t.Errorf("Remove outside root: err = %v, want ErrBadPath", err)
	}
}
