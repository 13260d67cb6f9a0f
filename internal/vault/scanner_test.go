package vault

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseNote(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		frontmatter bool
		want        []string
	}{
		{
			name:    "inline tags",
			content: "#project kickoff with #team/alpha and #team/beta.\nNot a tag: a#b, email@x.com#c",
			want:    []string{"#project", "#team/alpha", "#team/beta"},
		},
		{
			name:    "headings are not tags",
			content: "# Title\n## Section #real\n",
			want:    []string{"#real"},
		},
		{
			name:    "digits only",
			content: "issue #123 in #2024 for #y2024 and #2024/q1",
			want:    []string{"#2024/q1", "#y2024"},
		},
		{
			name:    "fenced code skipped",
			content: "#before\n```go\n#notatag\n```\n~~~\n#alsonot\n```\nstill inside\n~~~\n#after",
			want:    []string{"#after", "#before"},
		},
		{
			name:    "inline code skipped",
			content: "use `#define` here but #keep this",
			want:    []string{"#keep"},
		},
		{
			name:        "yaml list",
			content:     "---\ntitle: x\ntags:\n  - book\n  - '#reading/2024'\n---\nbody #inline\n",
			frontmatter: true,
			want:        []string{"#book", "#inline", "#reading/2024"},
		},
		{
			name:        "yaml string",
			content:     "---\ntags: book, reading  fiction\ntag: single\n---\n",
			frontmatter: true,
			want:        []string{"#book", "#fiction", "#reading", "#single"},
		},
		{
			name:        "toml",
			content:     "+++\ntitle = \"x\"\ntags = [\"book\", \"#idea\"]\n+++\n#inline",
			frontmatter: true,
			want:        []string{"#book", "#idea", "#inline"},
		},
		{
			name:        "frontmatter ignored when disabled",
			content:     "---\ntags: [book]\n---\n#inline",
			frontmatter: false,
			want:        []string{"#inline"},
		},
		{
			name:        "frontmatter body is not scanned for inline tags",
			content:     "---\ntitle: \"#notinline\"\n---\n",
			frontmatter: true,
			want:        nil,
		},
		{
			name:        "unterminated frontmatter is body",
			content:     "---\n#tag here",
			frontmatter: true,
			want:        []string{"#tag"},
		},
		{
			name:        "invalid frontmatter tags dropped",
			content:     "---\ntags: [\"bad tag\", \"ok\", \"12\"]\n---\n",
			frontmatter: true,
			want:        []string{"#ok"},
		},
		{
			name:    "non-ASCII tags rejected whole",
			content: "notes about #café and #naïve/x, then #plain.",
			want:    []string{"#plain"},
		},
		{
			name:    "duplicates collapse",
			content: "#a #a\n#a",
			want:    []string{"#a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := ParseNote("notes/test.md", []byte(tt.content), tt.frontmatter)
			if !reflect.DeepEqual(note.Tags, tt.want) {
				t.Errorf("Tags = %v, want %v", note.Tags, tt.want)
			}
		})
	}
}

func TestParseNote_Metadata(t *testing.T) {
	a := ParseNote("daily/2024-01-01.md", []byte("hello"), true)
	b := ParseNote("daily/2024-01-01.md", []byte("hello!"), true)

	if a.Name != "2024-01-01" {
		t.Errorf("Name = %q, want 2024-01-01", a.Name)
	}
	if len(a.Hash) != 64 || strings.Trim(a.Hash, "0123456789abcdef") != "" {
		t.Errorf("Hash = %q, want hex sha256", a.Hash)
	}
	if a.Hash == b.Hash {
		t.Error("different content should hash differently")
	}
}

func TestExpandTags(t *testing.T) {
	got := ExpandTags([]string{"#a/b/c", "#a", "#x/y"})
	want := []string{"#a", "#a/b", "#a/b/c", "#x", "#x/y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandTags() = %v, want %v", got, want)
	}
	if ExpandTags(nil) != nil {
		t.Error("ExpandTags(nil) should be nil")
	}
}
