// Package tagquery generates and parses the tag aggregation query dialect.
//
// A flattened query groups every file's tags into one row per tag:
//
//	TABLE length(rows.file.link) AS "File Count"
//	FROM #a AND #b
//	WHERE contains(file.tags,"#x")=false AND contains(file.etags,"#x")=false
//	FLATTEN file.tags AS Tag
//	WHERE Tag != "#a" AND Tag != "#b"
//	GROUP BY Tag
//	Limit 15
//
// An unflattened query lists one row per file and is only used for leaf
// file listings. Empty clauses are omitted.
package tagquery

import (
	"regexp"
	"strconv"
	"strings"
)

// RootTag is the placeholder name of an ungrouped root node.
const RootTag = "#"

// tagPattern is the only thing standing between tag values and the query
// text, which embeds them unescaped.
var tagPattern = regexp.MustCompile(`^#[\w\-/]+$`)

// Query is the set of constraints for one aggregation query.
type Query struct {
	// RequiredTags are AND-ed into the FROM clause.
	RequiredTags []string `json:"requiredTags,omitempty"`
	// IgnoreFileTags exclude any file carrying one of them, explicitly or not.
	IgnoreFileTags []string `json:"ignoreFileTags,omitempty"`
	// ExcludeGroupLabels are removed from the grouped result. Flattened only.
	ExcludeGroupLabels []string `json:"excludeGroupLabels,omitempty"`
	Limit              int      `json:"limit"`
	Flattened          bool     `json:"flattened"`
}

// ValidTag reports whether tag follows the tag grammar.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// FilterTags returns the tags that follow the grammar, in order. The root
// placeholder never does. Returns nil when nothing survives.
func FilterTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t == RootTag || !ValidTag(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// BuildQuery renders the query text for the given constraints.
// Tags that do not follow the grammar are dropped from every clause.
func BuildQuery(requiredTags, ignoreFileTags, excludeGroupLabels []string, limit int, flattened bool) string {
	return Query{
		RequiredTags:       requiredTags,
		IgnoreFileTags:     ignoreFileTags,
		ExcludeGroupLabels: excludeGroupLabels,
		Limit:              limit,
		Flattened:          flattened,
	}.String()
}

// Normalized returns a copy of q with every tag list grammar-filtered, the
// exclusions cleared for unflattened queries and a negative limit clamped to 0.
func (q Query) Normalized() Query {
	n := Query{
		RequiredTags:   FilterTags(q.RequiredTags),
		IgnoreFileTags: FilterTags(q.IgnoreFileTags),
		Limit:          q.Limit,
		Flattened:      q.Flattened,
	}
	if n.Limit < 0 {
		n.Limit = 0
	}
	if q.Flattened {
		n.ExcludeGroupLabels = FilterTags(q.ExcludeGroupLabels)
	}
	return n
}

// String renders q as query text, one clause per line.
func (q Query) String() string {
	n := q.Normalized()
	lines := make([]string, 0, 7)

	if n.Flattened {
		lines = append(lines, `TABLE length(rows.file.link) AS "File Count"`)
	} else {
		lines = append(lines, `TABLE file.name, length(rows.file.link) AS "File Count"`)
	}

	if len(n.RequiredTags) > 0 {
		lines = append(lines, "FROM "+strings.Join(n.RequiredTags, " AND "))
	}

	if len(n.IgnoreFileTags) > 0 {
		conds := make([]string, 0, len(n.IgnoreFileTags))
		for _, t := range n.IgnoreFileTags {
			conds = append(conds,
				`contains(file.tags,"`+t+`")=false AND contains(file.etags,"`+t+`")=false`)
		}
		lines = append(lines, "WHERE "+strings.Join(conds, " AND "))
	}

	if n.Flattened {
		lines = append(lines, "FLATTEN file.tags AS Tag")
		if len(n.ExcludeGroupLabels) > 0 {
			conds := make([]string, 0, len(n.ExcludeGroupLabels))
			for _, t := range n.ExcludeGroupLabels {
				conds = append(conds, `Tag != "`+t+`"`)
			}
			lines = append(lines, "WHERE "+strings.Join(conds, " AND "))
		}
		lines = append(lines, "GROUP BY Tag")
	}

	lines = append(lines, "Limit "+strconv.Itoa(n.Limit))
	return strings.Join(lines, "\n")
}
