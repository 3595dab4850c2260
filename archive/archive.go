// Package archive implements the FetchedPackage value type (C3) and
// the ar-wrapped binary-package codec (C2): reading and writing the
// control+data archive format described in spec.md §6.
//
// Grounded on the teacher's clickdeb/deb.go, which already reads and
// writes an ar container enclosing gzipped control and data tarballs
// for the click-specific variant of this format; this package
// generalises clickdeb's layout (which also carries a "_click-binary"
// member and click-specific content verification) down to the plain
// binary-package layout spec.md names: exactly debian-binary,
// control.tar.gz, data.tar.gz, no click or signature member.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blakesmith/ar"

	"github.com/linaro/hwpack/hwerr"
	"github.com/linaro/hwpack/internal/helpers"
	"github.com/linaro/hwpack/internal/log"
	"github.com/linaro/hwpack/relationship"
)

// controlFields are the non-relationship fields the writer recognises
// in addition to the seven relationship kinds.
var controlFields = map[string]bool{
	"Architecture": true,
	"Maintainer":   true,
	"Description":  true,
	"Section":      true,
	"Priority":     true,
}

// FetchedPackage is the immutable record of a single resolved package:
// identity, metadata and (optionally) its exact on-disk content.
//
// Equality compares every field including Content — when both sides
// have content bound, it is compared byte-for-byte; a package with
// content bound never equals one without, even if every other field
// matches (see Equal).
type FetchedPackage struct {
	Name         string
	Version      string
	Filename     string
	Size         uint64
	MD5          [16]byte
	Architecture string

	Depends    relationship.Relationship
	PreDepends relationship.Relationship
	Conflicts  relationship.Relationship
	Recommends relationship.Relationship
	Provides   relationship.Relationship
	Replaces   relationship.Relationship
	Breaks     relationship.Relationship

	// Content holds the exact archive bytes once bound. nil means
	// unbound — the package is known only by index metadata.
	Content []byte
}

// New constructs a FetchedPackage with no content bound and no
// relationships declared.
func New(name, version, filename string, size uint64, md5sum [16]byte, architecture string) *FetchedPackage {
	return &FetchedPackage{
		Name:         name,
		Version:      version,
		Filename:     filename,
		Size:         size,
		MD5:          md5sum,
		Architecture: architecture,
	}
}

// WithContent returns a copy of p with Content bound to data. If p's
// Size/MD5 were already set to values advertised by an index, they
// must match the exact bytes of data or WithContent returns an error
// (spec.md §3's FetchedPackage invariant).
func (p *FetchedPackage) WithContent(data []byte) (*FetchedPackage, error) {
	sum := md5.Sum(data)
	if p.Size != 0 && p.Size != uint64(len(data)) {
		return nil, fmt.Errorf("content size %d does not match advertised size %d for %s", len(data), p.Size, p.Name)
	}
	if p.MD5 != ([16]byte{}) && p.MD5 != sum {
		return nil, fmt.Errorf("content md5 does not match advertised md5 for %s", p.Name)
	}
	cp := *p
	cp.Size = uint64(len(data))
	cp.MD5 = sum
	cp.Content = append([]byte(nil), data...)
	return &cp, nil
}

// Equal compares every field of p and other, including Content.
func (p *FetchedPackage) Equal(other *FetchedPackage) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Name != other.Name || p.Version != other.Version ||
		p.Filename != other.Filename || p.Size != other.Size ||
		p.MD5 != other.MD5 || p.Architecture != other.Architecture {
		return false
	}
	if !p.Depends.Equal(other.Depends) || !p.PreDepends.Equal(other.PreDepends) ||
		!p.Conflicts.Equal(other.Conflicts) || !p.Recommends.Equal(other.Recommends) ||
		!p.Provides.Equal(other.Provides) || !p.Replaces.Equal(other.Replaces) ||
		!p.Breaks.Equal(other.Breaks) {
		return false
	}
	if (p.Content == nil) != (other.Content == nil) {
		return false
	}
	return bytes.Equal(p.Content, other.Content)
}

// relationshipOf returns the field of p named by kind, for the fixed
// iteration order RenderStanza relies on.
func (p *FetchedPackage) relationshipOf(kind relationship.Kind) relationship.Relationship {
	switch kind {
	case relationship.Depends:
		return p.Depends
	case relationship.PreDepends:
		return p.PreDepends
	case relationship.Conflicts:
		return p.Conflicts
	case relationship.Recommends:
		return p.Recommends
	case relationship.Provides:
		return p.Provides
	case relationship.Replaces:
		return p.Replaces
	case relationship.Breaks:
		return p.Breaks
	default:
		return relationship.Relationship{}
	}
}

func (p *FetchedPackage) setRelationship(kind relationship.Kind, rel relationship.Relationship) {
	switch kind {
	case relationship.Depends:
		p.Depends = rel
	case relationship.PreDepends:
		p.PreDepends = rel
	case relationship.Conflicts:
		p.Conflicts = rel
	case relationship.Recommends:
		p.Recommends = rel
	case relationship.Provides:
		p.Provides = rel
	case relationship.Replaces:
		p.Replaces = rel
	case relationship.Breaks:
		p.Breaks = rel
	}
}

// RenderStanza renders the Packages-index stanza format (spec.md §6)
// for packages, in fixed field order, separated by a blank line.
// extraText, if non-empty, is written verbatim as its own line
// immediately after Package (resolve.Index.SetInstalled passes the
// whole "Status: install ok installed" line for the dpkg status file).
func RenderStanza(packages []*FetchedPackage, extraText string) string {
	var b strings.Builder
	for _, pkg := range packages {
		fmt.Fprintf(&b, "Package: %s\n", pkg.Name)
		if extraText != "" {
			fmt.Fprintf(&b, "%s\n", extraText)
		}
		fmt.Fprintf(&b, "Version: %s\n", pkg.Version)
		fmt.Fprintf(&b, "Filename: %s\n", pkg.Filename)
		fmt.Fprintf(&b, "Size: %d\n", pkg.Size)
		fmt.Fprintf(&b, "Architecture: %s\n", pkg.Architecture)
		for _, kind := range relationship.Kinds {
			rel := pkg.relationshipOf(kind)
			if rel.IsZero() {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", kind, rel.String())
		}
		fmt.Fprintf(&b, "MD5sum: %x\n\n", pkg.MD5)
	}
	return b.String()
}

// WriteMaker is the scoped builder that synthesises minimally-valid
// package archives for test fixtures. It owns a private scratch
// directory created on Enter and recursively removed on Exit;
// re-entering before Exit is a programming error, and Exit without a
// prior Enter is a no-op.
//
// Modelled on hwpack.tests.test_packages.PackageMakerTests.
type WriteMaker struct {
	dir     string
	entered bool
}

// Enter creates the scratch directory. Calling Enter twice without an
// intervening Exit is a programming error.
func (m *WriteMaker) Enter() error {
	if m.entered {
		hwerr.ProgrammingError("WriteMaker entered twice without Exit")
	}
	dir, err := os.MkdirTemp("", "hwpack-archive")
	if err != nil {
		return err
	}
	m.dir = dir
	m.entered = true
	return nil
}

// Exit removes the scratch directory. It is a no-op if Enter was
// never called.
func (m *WriteMaker) Exit() {
	if !m.entered {
		return
	}
	os.RemoveAll(m.dir)
	m.entered = false
	m.dir = ""
}

// MakeTemporaryDirectory returns a fresh subdirectory of the scratch
// root. Enter must have been called first.
func (m *WriteMaker) MakeTemporaryDirectory() (string, error) {
	if !m.entered {
		hwerr.ProgrammingError("MakeTemporaryDirectory called before Enter")
	}
	dir, err := os.MkdirTemp(m.dir, "d")
	if err != nil {
		return "", err
	}
	return dir, nil
}

// MakePackage synthesises a syntactically valid binary package archive
// from the given control fields and returns the path to the resulting
// .deb-shaped file. fields may contain any of the seven relationship
// kinds plus Architecture, Maintainer, Description, Section, Priority;
// any other key fails with *hwerr.UnknownField. Architecture defaults
// to "all".
func (m *WriteMaker) MakePackage(name, version string, fields map[string]string) (string, error) {
	if !m.entered {
		hwerr.ProgrammingError("MakePackage called before Enter")
	}

	for key := range fields {
		if _, isRelationship := relationshipKind(key); isRelationship {
			continue
		}
		if !controlFields[key] {
			return "", &hwerr.UnknownField{Field: key}
		}
	}

	arch := fields["Architecture"]
	if arch == "" {
		arch = "all"
	}

	workDir, err := m.MakeTemporaryDirectory()
	if err != nil {
		return "", err
	}

	controlBuf, err := buildControlTarGz(name, version, arch, fields)
	if err != nil {
		return "", err
	}
	dataBuf, err := buildEmptyDataTarGz()
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s_%s.deb", name, version, arch)
	outPath := filepath.Join(workDir, filename)
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	arWriter := ar.NewWriter(f)
	if err := arWriter.WriteGlobalHeader(); err != nil {
		return "", err
	}
	if err := writeArMember(arWriter, "debian-binary", []byte("2.0\n")); err != nil {
		return "", err
	}
	if err := writeArMember(arWriter, "control.tar.gz", controlBuf); err != nil {
		return "", err
	}
	if err := writeArMember(arWriter, "data.tar.gz", dataBuf); err != nil {
		return "", err
	}

	log.L.Debugw("wrote package archive", "name", name, "version", version, "path", outPath)
	return outPath, nil
}

func relationshipKind(field string) (relationship.Kind, bool) {
	for _, k := range relationship.Kinds {
		if string(k) == field {
			return k, true
		}
	}
	return "", false
}

func writeArMember(w *ar.Writer, name string, data []byte) error {
	hdr := &ar.Header{
		Name:    name,
		ModTime: time.Now(),
		Mode:    0o644,
		Size:    int64(len(data)),
	}
	if err := w.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := w.Write(data)
	if err != nil && err != io.ErrShortWrite {
		return err
	}
	return nil
}

func buildControlTarGz(name, version, arch string, fields map[string]string) ([]byte, error) {
	var control strings.Builder
	fmt.Fprintf(&control, "Package: %s\n", name)
	fmt.Fprintf(&control, "Version: %s\n", version)
	fmt.Fprintf(&control, "Architecture: %s\n", arch)
	for _, key := range []string{"Maintainer", "Description", "Section", "Priority"} {
		if v, ok := fields[key]; ok {
			fmt.Fprintf(&control, "%s: %s\n", key, v)
		}
	}
	for _, kind := range relationship.Kinds {
		if v, ok := fields[string(kind)]; ok {
			fmt.Fprintf(&control, "%s: %s\n", kind, v)
		}
	}

	return tarGzSingleFile("control", control.String())
}

func buildEmptyDataTarGz() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tarGzSingleFile(name, content string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "root",
		Gname:    "root",
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadPackage parses the archive at path: extracts Package, Version,
// Architecture and all seven relationships from its control member,
// computes Size as the on-disk length and MD5 as the checksum of the
// exact file bytes, and binds Content to those bytes.
func ReadPackage(path string) (*FetchedPackage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	control, err := readArMember(bytes.NewReader(raw), "control.tar.gz")
	if err != nil {
		return nil, err
	}
	fields, err := parseControlFile(control)
	if err != nil {
		return nil, err
	}

	pkg := &FetchedPackage{
		Name:         fields["Package"],
		Version:      fields["Version"],
		Filename:     filepath.Base(path),
		Size:         uint64(len(raw)),
		MD5:          md5.Sum(raw),
		Architecture: fields["Architecture"],
	}
	for _, kind := range relationship.Kinds {
		text, ok := fields[string(kind)]
		if !ok {
			continue
		}
		rel, err := relationship.Parse(kind, text)
		if err != nil {
			return nil, err
		}
		pkg.setRelationship(kind, rel)
	}
	pkg.Content = raw
	return pkg, nil
}

func readArMember(r io.Reader, name string) ([]byte, error) {
	arReader := ar.NewReader(r)
	for {
		hdr, err := arReader.Next()
		if err != nil {
			return nil, err
		}
		if strings.TrimRight(hdr.Name, "/") == name {
			gz, err := gzip.NewReader(arReader)
			if err != nil {
				return nil, err
			}
			defer gz.Close()
			return io.ReadAll(gz)
		}
	}
}

func parseControlFile(tarGz []byte) (map[string]string, error) {
	fields := make(map[string]string)
	err := helpers.TarIterate(bytes.NewReader(tarGz), func(tr *tar.Reader, hdr *tar.Header) error {
		if filepath.Clean(hdr.Name) != "control" {
			return nil
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line == "" {
				continue
			}
			idx := strings.Index(line, ":")
			if idx == -1 {
				continue
			}
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+1:])
			fields[key] = value
		}
		return nil
	})
	return fields, err
}

// SortByNameVersion orders packages by name, then version, for
// deterministic test fixture output; mirrors the ordering the teacher
// relies on implicitly via map-free slices throughout snappy/sort.go.
func SortByNameVersion(packages []*FetchedPackage) {
	sort.Slice(packages, func(i, j int) bool {
		if packages[i].Name != packages[j].Name {
			return packages[i].Name < packages[j].Name
		}
		return packages[i].Version < packages[j].Version
	})
}

// ParseSize is a small helper used by the index reader (resolve
// package) to turn the textual Size field of a stanza back into a
// uint64.
func ParseSize(text string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(text), 10, 64)
}
