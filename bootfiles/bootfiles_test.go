package bootfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linaro/hwpack/board"
)

func TestOpenTwiceIsProgrammingError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Open")
		}
	}()
	var b Builder
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.Open()
}

func TestCloseWithoutOpenIsNoop(t *testing.T) {
	var b Builder
	b.Close() // must not panic
}

func TestDirBeforeOpenIsProgrammingError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading Dir before Open")
		}
	}()
	var b Builder
	b.Dir()
}

func TestCompileBootScriptRejectsVexpress(t *testing.T) {
	profile, err := board.Lookup("vexpress")
	if err != nil {
		t.Fatal(err)
	}
	b := Builder{Profile: profile}
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := b.CompileBootScript("bootm 0x1000"); err == nil {
		t.Fatal("expected error for vexpress boot script compilation")
	}
}

func TestStageBootloaderAmbiguousGlob(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	rootfs := t.TempDir()
	if err := os.MkdirAll(filepath.Join(rootfs, "usr/lib/x-loader-omap"), 0o755); err != nil {
		t.Fatal(err)
	}
	// No MLO written: zero matches triggers GlobAmbiguous.

	b := Builder{Profile: profile}
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	_, err = b.StageBootloader(rootfs)
	if err == nil {
		t.Fatal("expected error for missing MLO")
	}
}

func TestStageBootloaderCopiesSingleMatch(t *testing.T) {
	profile, err := board.Lookup("beagle")
	if err != nil {
		t.Fatal(err)
	}
	rootfs := t.TempDir()
	mloDir := filepath.Join(rootfs, "usr/lib/x-loader-omap")
	if err := os.MkdirAll(mloDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mloDir, "MLO"), []byte("mlo-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := Builder{Profile: profile}
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	out, err := b.StageBootloader(rootfs)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mlo-bytes" {
		t.Errorf("staged MLO content = %q", data)
	}
}

func TestWriteAndReadEnvFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snappy-system.txt")
	err := WriteEnvFile(path, []EnvVar{
		{Name: "snappy_mode", Value: "try"},
		{Name: "snappy_ab", Value: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	value, err := ReadEnvVar(path, "snappy_ab")
	if err != nil {
		t.Fatal(err)
	}
	if value != "b" {
		t.Errorf("snappy_ab = %q, want %q", value, "b")
	}
}

func TestWriteLoaderToImageWritesAtOffset(t *testing.T) {
	image := filepath.Join(t.TempDir(), "image.img")
	if err := os.WriteFile(image, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := filepath.Join(t.TempDir(), "loader.bin")
	if err := os.WriteFile(loader, []byte("loader-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var b Builder
	if err := b.WriteLoaderToImage(loader, image, 1); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[512:512+len("loader-bytes")]) != "loader-bytes" {
		t.Errorf("loader bytes not found at sector 1 offset")
	}
}
