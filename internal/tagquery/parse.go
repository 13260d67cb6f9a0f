package tagquery

import (
	"strconv"
	"strings"
	"unicode"

	tverrors "tagvis/internal/errors"
)

// Parse reads query text in the dialect produced by String. Whitespace
// between tokens is free-form and keywords are case-insensitive. Tags that
// do not follow the grammar are rejected rather than dropped.
func Parse(text string) (Query, error) {
	p := &parser{src: text}
	q, err := p.query()
	if err != nil {
		return Query{}, err
	}
	return q, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) query() (Query, error) {
	var q Query

	if err := p.keyword("TABLE"); err != nil {
		return q, err
	}
	if p.peekLiteral("file.name") {
		p.mustLiteral("file.name")
		if err := p.literal(","); err != nil {
			return q, err
		}
	} else {
		q.Flattened = true
	}
	if err := p.literal("length(rows.file.link)"); err != nil {
		return q, err
	}
	if err := p.keyword("AS"); err != nil {
		return q, err
	}
	if err := p.literal(`"File Count"`); err != nil {
		return q, err
	}

	if p.peekKeyword("FROM") {
		p.mustKeyword("FROM")
		tags, err := p.fromTags()
		if err != nil {
			return q, err
		}
		q.RequiredTags = tags
	}

	if p.peekKeyword("WHERE") {
		p.mustKeyword("WHERE")
		tags, err := p.ignoreConditions()
		if err != nil {
			return q, err
		}
		q.IgnoreFileTags = tags
	}

	if q.Flattened {
		labels, err := p.flatten()
		if err != nil {
			return q, err
		}
		q.ExcludeGroupLabels = labels
	}

	if err := p.keyword("LIMIT"); err != nil {
		return q, err
	}
	limit, err := p.integer()
	if err != nil {
		return q, err
	}
	q.Limit = limit

	p.skipSpace()
	if p.pos != len(p.src) {
		return q, p.errorf("unexpected trailing input")
	}
	return q, nil
}

// fromTags reads `#a AND #b ...`.
func (p *parser) fromTags() ([]string, error) {
	var tags []string
	for {
		tag, err := p.bareTag()
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
		if !p.peekKeyword("AND") {
			return tags, nil
		}
		p.mustKeyword("AND")
	}
}

// ignoreConditions reads the paired contains(...)=false checks.
func (p *parser) ignoreConditions() ([]string, error) {
	var tags []string
	for {
		tag, err := p.containsFalse("file.tags")
		if err != nil {
			return nil, err
		}
		if err := p.keyword("AND"); err != nil {
			return nil, err
		}
		etag, err := p.containsFalse("file.etags")
		if err != nil {
			return nil, err
		}
		if tag != etag {
			return nil, p.errorf("file.tags and file.etags conditions name different tags %q and %q", tag, etag)
		}
		tags = append(tags, tag)

		// Another pair follows only if AND is followed by contains.
		save := p.pos
		if !p.peekKeyword("AND") {
			return tags, nil
		}
		p.mustKeyword("AND")
		if !p.peekKeyword("contains") {
			p.pos = save
			return tags, nil
		}
	}
}

func (p *parser) containsFalse(field string) (string, error) {
	if err := p.keyword("contains"); err != nil {
		return "", err
	}
	for _, lit := range []string{"(", field, ","} {
		if err := p.literal(lit); err != nil {
			return "", err
		}
	}
	tag, err := p.quotedTag()
	if err != nil {
		return "", err
	}
	for _, lit := range []string{")", "="} {
		if err := p.literal(lit); err != nil {
			return "", err
		}
	}
	if err := p.keyword("false"); err != nil {
		return "", err
	}
	return tag, nil
}

// flatten reads `FLATTEN file.tags AS Tag [WHERE Tag != "#x" ...] GROUP BY Tag`.
func (p *parser) flatten() ([]string, error) {
	if err := p.keyword("FLATTEN"); err != nil {
		return nil, err
	}
	if err := p.literal("file.tags"); err != nil {
		return nil, err
	}
	if err := p.keyword("AS"); err != nil {
		return nil, err
	}
	if err := p.literal("Tag"); err != nil {
		return nil, err
	}

	var labels []string
	if p.peekKeyword("WHERE") {
		p.mustKeyword("WHERE")
		for {
			if err := p.literal("Tag"); err != nil {
				return nil, err
			}
			if err := p.literal("!="); err != nil {
				return nil, err
			}
			tag, err := p.quotedTag()
			if err != nil {
				return nil, err
			}
			labels = append(labels, tag)
			if !p.peekKeyword("AND") {
				break
			}
			p.mustKeyword("AND")
		}
	}

	if err := p.keyword("GROUP"); err != nil {
		return nil, err
	}
	if err := p.keyword("BY"); err != nil {
		return nil, err
	}
	if err := p.literal("Tag"); err != nil {
		return nil, err
	}
	return labels, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (p *parser) peekKeyword(kw string) bool {
	p.skipSpace()
	end := p.pos + len(kw)
	if end > len(p.src) || !strings.EqualFold(p.src[p.pos:end], kw) {
		return false
	}
	return end == len(p.src) || !isWordByte(p.src[end])
}

func (p *parser) keyword(kw string) error {
	if !p.peekKeyword(kw) {
		return p.errorf("expected %s", kw)
	}
	p.pos += len(kw)
	return nil
}

func (p *parser) mustKeyword(kw string) {
	_ = p.keyword(kw)
}

func (p *parser) peekLiteral(lit string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.src[p.pos:], lit)
}

func (p *parser) literal(lit string) error {
	if !p.peekLiteral(lit) {
		return p.errorf("expected %q", lit)
	}
	p.pos += len(lit)
	return nil
}

func (p *parser) mustLiteral(lit string) {
	_ = p.literal(lit)
}

func (p *parser) bareTag() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	tag := p.src[start:p.pos]
	if !ValidTag(tag) {
		p.pos = start
		return "", p.errorf("invalid tag %q", tag)
	}
	return tag, nil
}

func (p *parser) quotedTag() (string, error) {
	if err := p.literal(`"`); err != nil {
		return "", err
	}
	end := strings.IndexByte(p.src[p.pos:], '"')
	if end < 0 {
		return "", p.errorf("unterminated string")
	}
	tag := p.src[p.pos : p.pos+end]
	if !ValidTag(tag) {
		return "", p.errorf("invalid tag %q", tag)
	}
	p.pos += end + 1
	return tag, nil
}

func (p *parser) integer() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected a number")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, tverrors.New(tverrors.InvalidQuery, "limit out of range", err)
	}
	return n, nil
}

func (p *parser) errorf(format string, args ...interface{}) *tverrors.TagvisError {
	return tverrors.Newf(tverrors.InvalidQuery, format, args...).
		WithDetails(map[string]int{"offset": p.pos})
}
