package query

import (
	"fmt"
	"strings"

	"github.com/genesysflow/go-fluentsql/support"
)

// WhereDynamic interprets a method name of the form whereFoo,
// whereFooAndBar or whereFooOrBar as equality constraints on the named
// columns. The suffix after "where" is split around the And/Or
// connectors, each remaining segment is converted to snake_case and
// paired with the next positional argument under the connector in effect
// (initially and). whereFirstNameAndLastName("a", "b") is
// Where("first_name", "=", "a").Where("last_name", "=", "b").
//
// A method not starting with "where" or "Where", or one naming more columns than
// arguments supplied, records an error surfaced by the next terminal.
func (b *Builder) WhereDynamic(method string, args ...any) *Builder {
	finger, ok := strings.CutPrefix(method, "where")
	if !ok {
		finger, ok = strings.CutPrefix(method, "Where")
	}
	if !ok || finger == "" {
		b.setErr(fmt.Errorf("%w: %s", ErrUnknownMethod, method))
		return b
	}

	connector := "and"
	index := 0
	for _, segment := range SplitDynamicSegments(finger) {
		if segment == "And" || segment == "Or" {
			connector = strings.ToLower(segment)
			continue
		}
		if index >= len(args) {
			b.setErr(fmt.Errorf("%w: %s needs %d arguments", ErrBadArgument, method, index+1))
			return b
		}
		b.addWhere(support.Str.Snake(segment), connector, []any{"=", args[index]})
		index++
	}
	return b
}

// SplitDynamicSegments splits a dynamic where suffix around the And/Or
// connectors, keeping the connectors as their own segments. A connector
// only counts when followed by an uppercase letter, so multi-word columns
// like Android or Order survive intact.
func SplitDynamicSegments(s string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(s); {
		connector := connectorAt(s, i)
		if connector != "" && i > start {
			segments = append(segments, s[start:i], connector)
			i += len(connector)
			start = i
			continue
		}
		i++
	}
	if start < len(s) {
		segments = append(segments, s[start:])
	}
	return segments
}

func connectorAt(s string, i int) string {
	for _, connector := range [...]string{"And", "Or"} {
		end := i + len(connector)
		if end >= len(s) || s[i:end] != connector {
			continue
		}
		if next := s[end]; next >= 'A' && next <= 'Z' {
			return connector
		}
	}
	return ""
}
