// Package keys builds result-cache keys and the SCAN patterns that select them.
//
// Layout: ac:<scope>:<cell>:<fingerprint>
//
//	scope        dataset id, "_all" for _all_data, "_none" without a dataset
//	cell         H3 cell of a point bias, "-" otherwise
//	fingerprint  xxhash64 of the whole canonical query
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

const (
	Prefix    = "ac"
	ScopeAll  = "_all"
	ScopeNone = "_none"
	NoCell    = "-"
)

// Scope returns the scope segment for s.
func Scope(s model.DatasetScope) string {
	switch {
	case s.AllData:
		return ScopeAll
	case s.ID != nil:
		return DatasetSegment(*s.ID)
	default:
		return ScopeNone
	}
}

// DatasetSegment makes a dataset id safe for keys and glob patterns.
func DatasetSegment(dataset string) string {
	const maxLen = 64
	seg := sanitize(strings.TrimSpace(dataset))
	if seg == "" || seg[0] == '_' {
		// keep "_all" and "_none" reserved
		seg = "d" + seg
	}
	if len(seg) > maxLen {
		seg = seg[:maxLen]
	}
	return seg
}

// Key returns the cache key for q. cell is "" when q has no point bias.
func Key(q model.CanonicalQuery, cell string) string {
	if cell == "" {
		cell = NoCell
	}
	return fmt.Sprintf("%s:%s:%s:%016x", Prefix, Scope(q.Scope), cell, Fingerprint(q))
}

// Fingerprint hashes every field of q. Whitespace runs in the text collapse,
// and a nil type list hashes differently from an empty one.
func Fingerprint(q model.CanonicalQuery) uint64 {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(collapseASCIIWhitespace(q.Text))
	b.WriteString("\x00ds=")
	if q.Scope.ID != nil {
		b.WriteString(strconv.Quote(*q.Scope.ID))
	}
	b.WriteString("\x00all=")
	b.WriteString(strconv.FormatBool(q.Scope.AllData))
	fmt.Fprintf(&b, "\x00page=%d,%d", q.Page.Offset, q.Page.Limit)

	b.WriteString("\x00bias=")
	b.WriteString(q.Bias.Kind().String())
	if c, ok := q.Bias.Point(); ok {
		b.WriteString(":" + formatFloat(c.Lon) + "," + formatFloat(c.Lat))
	}
	if poly, ok := q.Bias.Shape(); ok {
		for _, p := range poly {
			b.WriteString(":" + formatFloat(p.Lat) + "," + formatFloat(p.Lon))
		}
	}

	b.WriteString("\x00types=")
	if q.Types == nil {
		b.WriteString("*")
	} else {
		b.WriteString("[")
		for i, t := range q.Types {
			if i > 0 {
				b.WriteString("\x1f")
			}
			b.WriteString(t)
		}
		b.WriteString("]")
	}
	return xxhash.Sum64String(b.String())
}

// Feature returns the in-process cache key of a feature lookup. Unlike the
// scope segment it keeps the dataset id verbatim, so distinct ids never share
// an entry.
func Feature(s model.DatasetScope, id string) string {
	ds := "-"
	if s.ID != nil {
		ds = strconv.Quote(*s.ID)
	}
	return strconv.FormatBool(s.AllData) + "\x00" + ds + "\x00" + id
}

// Pattern selects keys of one scope segment and cell. "*" is a wildcard for either.
func Pattern(scope, cell string) string {
	return Prefix + ":" + scope + ":" + cell + ":*"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// glob metacharacters, ':' and non-ASCII all become '-'
			out = '-'
		}
		if out == '-' && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
