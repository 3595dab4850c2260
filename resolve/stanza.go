package resolve

import (
	"bufio"
	"strings"

	"github.com/linaro/hwpack/archive"
	"github.com/linaro/hwpack/relationship"
)

// Candidate is one published version of a package as listed by one
// configured source: the index's unit of resolution before a
// FetchedPackage is materialised. The index keeps every Candidate of a
// name, newest first. It implements relationship.Candidate
// so relationship.Stringify can project a relationship straight off of
// it, as hwpack.tests.test_packages.StringifyRelationshipTests does
// against a python-apt Version object.
type Candidate struct {
	Name         string
	Version      string
	Filename     string
	Size         uint64
	MD5          string
	Architecture string
	Source       SourceEntry

	rels map[string]string
}

// RawRelationship implements relationship.Candidate.
func (c *Candidate) RawRelationship(kind relationship.Kind) (string, bool) {
	text, ok := c.rels[string(kind)]
	return text, ok
}

func (c *Candidate) raw(field string) (string, bool) {
	text, ok := c.rels[field]
	return text, ok
}

// parseStanzas parses the Packages-index stanza format (spec.md §6,
// the same layout archive.RenderStanza produces) into Candidates
// sourced from src.
func parseStanzas(data []byte, src SourceEntry) ([]*Candidate, error) {
	var candidates []*Candidate
	fields := map[string]string{}

	flush := func() {
		if len(fields) == 0 {
			return
		}
		c := &Candidate{
			Name:         fields["Package"],
			Version:      fields["Version"],
			Filename:     fields["Filename"],
			Architecture: fields["Architecture"],
			MD5:          strings.ToLower(fields["MD5sum"]),
			Source:       src,
			rels:         map[string]string{},
		}
		if sz, err := archive.ParseSize(fields["Size"]); err == nil {
			c.Size = sz
		}
		for _, kind := range relationship.Kinds {
			if v, ok := fields[string(kind)]; ok {
				c.rels[string(kind)] = v
			}
		}
		candidates = append(candidates, c)
		fields = map[string]string{}
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
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
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}
