// Package tarmatch ports hwpack's test_tarfile_matchers.py helpers for
// asserting on the structure of a tar archive without fully unpacking
// it: "this path exists", "this path's content equals this value",
// "this path's mode/mtime/linkname/uid/gid/uname/gname equals this
// value", each producing a readable mismatch description instead of a
// bare boolean.
package tarmatch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"
)

// Mismatch describes why a match failed. A nil Mismatch means the
// match succeeded.
type Mismatch interface {
	Describe() string
}

// MissingPathMismatch reports that an expected path is not present in
// the archive at all.
type MissingPathMismatch struct {
	Path string
}

func (m *MissingPathMismatch) Describe() string {
	return fmt.Sprintf("tarfile has no member %q", m.Path)
}

// WrongValueMismatch reports that a path exists but its content (or
// some other attribute) differs from what was expected.
type WrongValueMismatch struct {
	Path     string
	Attr     string
	Got      string
	Expected string
}

func (m *WrongValueMismatch) Describe() string {
	return fmt.Sprintf("tarfile member %q: %s = %q, expected %q", m.Path, m.Attr, m.Got, m.Expected)
}

// Archive is a tar (optionally gzip-compressed) archive loaded fully
// into memory so it can be matched against repeatedly without
// re-reading the underlying stream.
type Archive struct {
	members map[string]*memberRecord
	order   []string
}

type memberRecord struct {
	header  tar.Header
	content []byte
}

// Load reads a tar or tar.gz stream into an Archive.
func Load(r io.Reader) (*Archive, error) {
	peeked := bufReader{r: r}
	magic, err := peeked.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}

	var tr *tar.Reader
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(peeked.reader())
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		tr = tar.NewReader(gz)
	} else {
		tr = tar.NewReader(peeked.reader())
	}

	a := &Archive{members: map[string]*memberRecord{}}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		a.members[name] = &memberRecord{header: *hdr, content: content}
		a.order = append(a.order, name)
	}
	return a, nil
}

// bufReader is a tiny two-byte lookahead so Load can sniff gzip magic
// without requiring an io.Seeker.
type bufReader struct {
	r      io.Reader
	peeked []byte
}

func (b *bufReader) Peek(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(b.r, buf)
	b.peeked = buf[:read]
	if err != nil && err != io.ErrUnexpectedEOF {
		return b.peeked, err
	}
	return b.peeked, nil
}

func (b *bufReader) reader() io.Reader {
	return io.MultiReader(bytes.NewReader(b.peeked), b.r)
}

// HasFile asserts path is present in the archive. It returns a nil
// Mismatch on success.
func (a *Archive) HasFile(path string) Mismatch {
	path = strings.TrimSuffix(path, "/")
	if _, ok := a.members[path]; !ok {
		return &MissingPathMismatch{Path: path}
	}
	return nil
}

// HasFileContent asserts path is present and its content equals want
// exactly.
func (a *Archive) HasFileContent(path string, want []byte) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if !bytes.Equal(m.content, want) {
		return &WrongValueMismatch{Path: path, Attr: "content", Got: string(m.content), Expected: string(want)}
	}
	return nil
}

// HasMode asserts path is present and has the given permission bits.
func (a *Archive) HasMode(path string, mode int64) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Mode != mode {
		return &WrongValueMismatch{
			Path: path, Attr: "mode",
			Got:      fmt.Sprintf("0%o", m.header.Mode),
			Expected: fmt.Sprintf("0%o", mode),
		}
	}
	return nil
}

// HasMtime asserts path is present and has the given modification
// time, compared with time.Time.Equal (tar headers are second-
// granularity, so this is robust to sub-second truncation).
func (a *Archive) HasMtime(path string, mtime time.Time) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if !m.header.ModTime.Equal(mtime) {
		return &WrongValueMismatch{
			Path: path, Attr: "mtime",
			Got:      m.header.ModTime.Format(time.RFC3339),
			Expected: mtime.Format(time.RFC3339),
		}
	}
	return nil
}

// HasLinkname asserts path is present and its symlink/hardlink target
// equals want.
func (a *Archive) HasLinkname(path string, want string) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Linkname != want {
		return &WrongValueMismatch{Path: path, Attr: "linkname", Got: m.header.Linkname, Expected: want}
	}
	return nil
}

// HasUID asserts path is present and owned by the given numeric uid.
func (a *Archive) HasUID(path string, uid int) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Uid != uid {
		return &WrongValueMismatch{
			Path: path, Attr: "uid",
			Got:      fmt.Sprintf("%d", m.header.Uid),
			Expected: fmt.Sprintf("%d", uid),
		}
	}
	return nil
}

// HasGID asserts path is present and owned by the given numeric gid.
func (a *Archive) HasGID(path string, gid int) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Gid != gid {
		return &WrongValueMismatch{
			Path: path, Attr: "gid",
			Got:      fmt.Sprintf("%d", m.header.Gid),
			Expected: fmt.Sprintf("%d", gid),
		}
	}
	return nil
}

// HasUname asserts path is present and owned by the given symbolic
// user name.
func (a *Archive) HasUname(path string, uname string) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Uname != uname {
		return &WrongValueMismatch{Path: path, Attr: "uname", Got: m.header.Uname, Expected: uname}
	}
	return nil
}

// HasGname asserts path is present and owned by the given symbolic
// group name.
func (a *Archive) HasGname(path string, gname string) Mismatch {
	path = strings.TrimSuffix(path, "/")
	m, ok := a.members[path]
	if !ok {
		return &MissingPathMismatch{Path: path}
	}
	if m.header.Gname != gname {
		return &WrongValueMismatch{Path: path, Attr: "gname", Got: m.header.Gname, Expected: gname}
	}
	return nil
}

// Paths returns every member path in the order it appeared in the
// archive.
func (a *Archive) Paths() []string {
	return append([]string(nil), a.order...)
}
