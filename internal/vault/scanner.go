// Package vault indexes the tags of a folder of markdown notes and answers
// tag aggregation queries from that index.
package vault

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"tagvis/internal/tagquery"
)

// Note is what the scanner extracts from one markdown file.
type Note struct {
	// Path is vault-relative with forward slashes.
	Path string
	// Name is the file name without extension.
	Name string
	Hash string
	// Tags are the explicit tags, sorted and unique.
	Tags []string
}

var (
	// Fence start/end - allow leading whitespace, support ``` and ~~~
	fenceStartPattern = regexp.MustCompile("^\\s*(```|~~~)")

	// An inline tag starts at a line start or after whitespace. The token
	// spans any letter so a non-ASCII tag is rejected whole, not truncated.
	inlineTagPattern = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{M}\p{N}_\-/]+)`)

	inlineCodePattern = regexp.MustCompile("`[^`]*`")
	hasNonDigit       = regexp.MustCompile(`[^0-9]`)
)

// ParseNote extracts the tags of a note. followFrontmatter controls whether
// frontmatter tags are read.
func ParseNote(relPath string, content []byte, followFrontmatter bool) Note {
	sum := sha256.Sum256(content)
	base := path.Base(relPath)
	note := Note{
		Path: relPath,
		Name: strings.TrimSuffix(base, path.Ext(base)),
		Hash: fmt.Sprintf("%x", sum[:]),
	}

	body := content
	seen := map[string]bool{}
	add := func(raw string) {
		if tag, ok := normalizeTag(raw); ok && !seen[tag] {
			seen[tag] = true
			note.Tags = append(note.Tags, tag)
		}
	}

	if fm, rest, kind := splitFrontmatter(content); kind != "" {
		body = rest
		if followFrontmatter {
			for _, t := range frontmatterTags(fm, kind) {
				add(t)
			}
		}
	}

	for _, t := range inlineTags(body) {
		add(t)
	}

	sort.Strings(note.Tags)
	return note
}

// splitFrontmatter returns the frontmatter block, the remaining body and the
// block kind ("yaml" or "toml"), or an empty kind when there is none.
func splitFrontmatter(content []byte) ([]byte, []byte, string) {
	var delim, kind string
	switch {
	case bytes.HasPrefix(content, []byte("---\n")), bytes.HasPrefix(content, []byte("---\r\n")):
		delim, kind = "---", "yaml"
	case bytes.HasPrefix(content, []byte("+++\n")), bytes.HasPrefix(content, []byte("+++\r\n")):
		delim, kind = "+++", "toml"
	default:
		return nil, content, ""
	}

	start := bytes.IndexByte(content, '\n') + 1
	offset := start
	for offset < len(content) {
		end := bytes.IndexByte(content[offset:], '\n')
		var line []byte
		next := len(content)
		if end >= 0 {
			line = content[offset : offset+end]
			next = offset + end + 1
		} else {
			line = content[offset:]
		}
		if string(bytes.TrimRight(line, "\r \t")) == delim {
			return content[start:offset], content[next:], kind
		}
		offset = next
	}
	// unterminated: not frontmatter
	return nil, content, ""
}

// frontmatter holds the keys tagvis reads. tags may be a list or a string.
type frontmatter struct {
	Tags interface{} `yaml:"tags" toml:"tags"`
	Tag  interface{} `yaml:"tag" toml:"tag"`
}

func frontmatterTags(block []byte, kind string) []string {
	var fm frontmatter
	var err error
	if kind == "toml" {
		_, err = toml.Decode(string(block), &fm)
	} else {
		err = yaml.Unmarshal(block, &fm)
	}
	if err != nil {
		return nil
	}
	return append(tagValues(fm.Tags), tagValues(fm.Tag)...)
}

// tagValues flattens a frontmatter value into tag strings. A plain string is
// split on commas and whitespace; each list item is one tag.
func tagValues(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	case []interface{}:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// inlineTags finds #tags outside fenced code and inline code spans.
func inlineTags(body []byte) []string {
	var tags []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	fence := ""
	for scanner.Scan() {
		line := scanner.Text()

		if m := fenceStartPattern.FindStringSubmatch(line); m != nil {
			switch {
			case fence == "":
				fence = m[1]
			case fence == m[1]:
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		line = inlineCodePattern.ReplaceAllString(line, " ")
		for _, m := range inlineTagPattern.FindAllStringSubmatch(line, -1) {
			tags = append(tags, m[1])
		}
	}
	return tags
}

// normalizeTag adds the leading # and checks the tag grammar. Tags made of
// digits only are not tags.
func normalizeTag(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "#") {
		raw = "#" + raw
	}
	raw = strings.TrimRight(raw, "/")
	if !tagquery.ValidTag(raw) || !hasNonDigit.MatchString(raw[1:]) {
		return "", false
	}
	return raw, true
}

// ExpandTags returns tags plus every parent of a nested tag, sorted and
// unique: #a/b/c yields #a, #a/b and #a/b/c.
func ExpandTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		parts := strings.Split(strings.TrimPrefix(t, "#"), "/")
		for i := range parts {
			if parts[i] == "" {
				break
			}
			parent := "#" + strings.Join(parts[:i+1], "/")
			if !seen[parent] {
				seen[parent] = true
				out = append(out, parent)
			}
		}
	}
	sort.Strings(out)
	return out
}
