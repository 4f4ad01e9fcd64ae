package parser

import (
	"regexp"
	"sort"
	"strings"
)

var (
	funcHeadPattern   = regexp.MustCompile(`(?:\b([A-Za-z_]\w*)\s+|>\s*)([A-Za-z_]\w*)\s*\(`)
	structPattern     = regexp.MustCompile(`\bstruct\s+([A-Za-z_]\w*)\s*\{([^{}]*)\}\s*;`)
	fieldPattern      = regexp.MustCompile(`^([A-Za-z_]\w*)\s+([A-Za-z_]\w*)\s*(?::\s*([A-Za-z_]\w*))?$`)
	entryPointPattern = regexp.MustCompile(`^[A-Za-z]+_main$`)
	semanticPattern   = regexp.MustCompile(`^\s*:\s*[A-Za-z_]\w*`)
)

// Words that can precede an identifier and "(" without forming a definition.
var nonTypeWords = map[string]struct{}{
	"return": {}, "else": {}, "case": {}, "struct": {}, "new": {},
}

// funcDef is a function definition found in source.
type funcDef struct {
	name   string
	offset int
}

// rawField is one "<type> <name> [: <semantic>]" entry of a struct body.
type rawField struct {
	typeName string
	name     string
	semantic string
	offset   int
}

// rawStruct is a struct block collected in phase one. Its body is split into
// fields only when the struct is used.
type rawStruct struct {
	name      string
	offset    int
	bodyStart int
	bodyEnd   int
}

// scanner performs the lexical passes over merged, comment-blanked text.
type scanner struct {
	text     string
	newlines []int
}

func newScanner(source string) *scanner {
	text := blankComments(source)
	s := &scanner{text: text}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			s.newlines = append(s.newlines, i)
		}
	}
	return s
}

// line returns the 1-based merged line containing offset.
func (s *scanner) line(offset int) int {
	return sort.SearchInts(s.newlines, offset) + 1
}

// functions returns function definitions in source order. A definition is a
// "<type> <name>(...)" head followed by an optional ": SEMANTIC" and a body.
// Template return types such as vector<float, 4> end in '>' instead of an
// identifier.
func (s *scanner) functions() []funcDef {
	var defs []funcDef
	for _, m := range funcHeadPattern.FindAllStringSubmatchIndex(s.text, -1) {
		if m[2] >= 0 {
			if _, skip := nonTypeWords[s.text[m[2]:m[3]]]; skip {
				continue
			}
		}
		closing := matchParen(s.text, m[1]-1)
		if closing < 0 {
			continue
		}
		rest := s.text[closing+1:]
		if loc := semanticPattern.FindStringIndex(rest); loc != nil {
			rest = rest[loc[1]:]
		}
		if !strings.HasPrefix(strings.TrimLeft(rest, " \t\r\n"), "{") {
			continue
		}
		defs = append(defs, funcDef{name: s.text[m[4]:m[5]], offset: m[4]})
	}
	return defs
}

// structs returns every flat struct block in source order.
func (s *scanner) structs() []rawStruct {
	var out []rawStruct
	for _, m := range structPattern.FindAllStringSubmatchIndex(s.text, -1) {
		out = append(out, rawStruct{
			name:      s.text[m[2]:m[3]],
			offset:    m[2],
			bodyStart: m[4],
			bodyEnd:   m[5],
		})
	}
	return out
}

// fields splits a struct body at ';' and parses each declaration.
func (s *scanner) fields(rs *rawStruct) ([]rawField, error) {
	start := rs.bodyStart
	body := s.text[start:rs.bodyEnd]
	var fields []rawField
	pos := 0
	for {
		semi := strings.IndexByte(body[pos:], ';')
		if semi < 0 {
			break
		}
		decl := body[pos : pos+semi]
		declStart := pos
		pos += semi + 1

		trimmed := strings.TrimSpace(decl)
		if trimmed == "" {
			continue
		}
		offset := start + declStart + strings.Index(decl, trimmed)
		m := fieldPattern.FindStringSubmatch(collapseSpace(trimmed))
		if m == nil {
			return nil, &fieldError{offset: offset, decl: trimmed}
		}
		fields = append(fields, rawField{typeName: m[1], name: m[2], semantic: m[3], offset: offset})
	}
	if tail := strings.TrimSpace(body[pos:]); tail != "" {
		return nil, &fieldError{offset: start + pos + strings.Index(body[pos:], tail), decl: tail}
	}
	return fields, nil
}

// fieldError is converted to a located ParseError by the parser.
type fieldError struct {
	offset int
	decl   string
}

func (e *fieldError) Error() string {
	return "malformed field " + e.decl
}

func isEntryPointName(name string) bool {
	return entryPointPattern.MatchString(name)
}

// matchParen returns the index of the ')' closing the '(' at open, or -1.
func matchParen(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// blankComments replaces // and /* */ comments with spaces, keeping newlines
// so offsets and line numbers are unchanged.
func blankComments(src string) string {
	b := []byte(src)
	for i := 0; i < len(b); i++ {
		if b[i] != '/' || i+1 >= len(b) {
			continue
		}
		switch b[i+1] {
		case '/':
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		case '*':
			b[i], b[i+1] = ' ', ' '
			i += 2
			for i < len(b) {
				if b[i] == '*' && i+1 < len(b) && b[i+1] == '/' {
					b[i], b[i+1] = ' ', ' '
					i++
					break
				}
				if b[i] != '\n' {
					b[i] = ' '
				}
				i++
			}
		}
	}
	return string(b)
}
