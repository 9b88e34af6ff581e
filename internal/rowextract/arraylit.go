// Package rowextract holds the pure projections from a database result
// row into the canonical in-memory entity shapes: element info, tags,
// way nodes, relation members, changeset comments (spec §4.3).
package rowextract

import (
	"strings"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
)

// ParseArrayLiteral parses the database's textual array encoding used by
// the aggregated columns (tag_k/tag_v, node_ids, member_types/_ids/_roles,
// comment columns): elements delimited by commas, quoted where the
// element itself contains a comma, brace, backslash or quote, with NULL
// as the only unquoted sentinel. An empty or "{}" literal is the empty
// array, matching a NULL array_agg result over zero rows (spec §8:
// "array aggregation yields NULL arrays which extractors treat as
// empty").
func ParseArrayLiteral(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return nil, nil
	}

	var out []string
	var tok strings.Builder
	inQuotes := false
	wasQuoted := false
	escaped := false

	appendTok := func() error {
		t := tok.String()
		tok.Reset()
		if !wasQuoted && t == "NULL" {
			return cgimaperr.NewMalformedRowError("NULL element not permitted in this array column")
		}
		out = append(out, t)
		wasQuoted = false
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			tok.WriteByte(c)
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			if inQuotes {
				inQuotes = false
			} else {
				inQuotes = true
				wasQuoted = true
			}
		case c == ',' && !inQuotes:
			if err := appendTok(); err != nil {
				return nil, err
			}
		default:
			tok.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, cgimaperr.NewMalformedRowError("unterminated quoted array element")
	}
	if err := appendTok(); err != nil {
		return nil, err
	}

	return out, nil
}
