package vault

import (
	"context"
	"fmt"
	"strings"

	"tagvis/internal/expansion"
	"tagvis/internal/storage"
	"tagvis/internal/tagquery"
)

// Provider answers tag aggregation queries from the index.
type Provider struct {
	db *storage.DB
}

// NewProvider creates a provider over an open index.
func NewProvider(db *storage.DB) *Provider {
	return &Provider{db: db}
}

var _ expansion.Provider = (*Provider)(nil)

// Query parses text and runs it against the index. Text outside the query
// dialect yields an unsuccessful result; database failures are errors.
func (p *Provider) Query(ctx context.Context, text string) (*expansion.Result, error) {
	q, err := tagquery.Parse(text)
	if err != nil {
		return &expansion.Result{Successful: false, Error: err.Error()}, nil
	}

	sqlText, args := buildSQL(q)
	rows, err := p.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("running tag query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]expansion.Row, 0, q.Limit)
	for rows.Next() {
		var r expansion.Row
		if err := rows.Scan(&r.Label, &r.Count); err != nil {
			return nil, err
		}
		values = append(values, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &expansion.Result{Successful: true, Values: values}, nil
}

// buildSQL translates a parsed query into SQL over files and file_tags.
// file_tags holds the expanded tag set, so a required #a also matches
// files tagged #a/b, and ignoring a tag covers both tag sets at once.
func buildSQL(q tagquery.Query) (string, []interface{}) {
	var where []string
	var args []interface{}

	for _, t := range q.RequiredTags {
		where = append(where, "EXISTS (SELECT 1 FROM file_tags r WHERE r.file_id = f.id AND r.tag = ?)")
		args = append(args, t)
	}
	for _, t := range q.IgnoreFileTags {
		where = append(where, "NOT EXISTS (SELECT 1 FROM file_tags x WHERE x.file_id = f.id AND x.tag = ?)")
		args = append(args, t)
	}

	var b strings.Builder
	if q.Flattened {
		b.WriteString("SELECT ft.tag, COUNT(DISTINCT f.id) FROM files f JOIN file_tags ft ON ft.file_id = f.id")
		if len(q.ExcludeGroupLabels) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.ExcludeGroupLabels)), ", ")
			where = append(where, "ft.tag NOT IN ("+placeholders+")")
			for _, t := range q.ExcludeGroupLabels {
				args = append(args, t)
			}
		}
	} else {
		b.WriteString("SELECT f.name, 1 FROM files f")
	}

	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if q.Flattened {
		b.WriteString(" GROUP BY ft.tag ORDER BY ft.tag")
	} else {
		b.WriteString(" ORDER BY f.path")
	}
	b.WriteString(" LIMIT ?")
	args = append(args, q.Limit)

	return b.String(), args
}
