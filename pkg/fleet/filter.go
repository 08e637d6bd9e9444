package fleet

import (
	"fmt"
	"regexp"
	"strings"
)

// TargetAll is the target expression selecting every known node.
const TargetAll = "*"

// ParseTarget splits a target expression into a filter key and value.
// A bare token matches the name field by glob; `key=value` matches an
// arbitrary field. The empty expression selects everything (empty key).
func ParseTarget(expr string) (key, value string) {
	if expr == "" || expr == TargetAll {
		return "", ""
	}
	if k, v, ok := strings.Cut(expr, "="); ok {
		return k, v
	}
	return "name", expr
}

// Filter returns the nodes whose field `key` glob-matches `value`.
//
// The key "tags" is special: value is `keyglob:valglob`, split on the
// rightmost colon, with optional surrounding quotes stripped from the key
// portion; a node matches if any tag pair matches both globs. An empty key
// returns the input unchanged.
func Filter(nodes []*Node, key, value string) ([]*Node, error) {
	if key == "" {
		return nodes, nil
	}

	if key == "tags" {
		kglob, vglob, err := SplitTagFilter(value)
		if err != nil {
			return nil, err
		}
		var out []*Node
		for _, node := range nodes {
			if MatchTags(node.Tags, kglob, vglob) {
				out = append(out, node)
			}
		}
		return out, nil
	}

	match, err := compileGlob(value)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, node := range nodes {
		v := node.Get(key)
		if v == "" {
			continue
		}
		if match.MatchString(v) {
			out = append(out, node)
		}
	}
	return out, nil
}

// SplitTagFilter splits a `keyglob:valglob` tag filter on the rightmost
// colon, stripping optional surrounding quotes from the key portion.
func SplitTagFilter(value string) (kglob, vglob string, err error) {
	pos := strings.LastIndex(value, ":")
	if pos < 0 {
		return "", "", fmt.Errorf("%w: use tags=key:value, wildcards allowed on key, value", ErrBadFilter)
	}
	kglob, vglob = value[:pos], value[pos+1:]
	if len(kglob) >= 2 && strings.HasPrefix(kglob, `"`) && strings.HasSuffix(kglob, `"`) {
		kglob = kglob[1 : len(kglob)-1]
	}
	if kglob == "" && vglob == "" {
		return "", "", fmt.Errorf("%w: use tags=key:value, wildcards allowed on key, value", ErrBadFilter)
	}
	return kglob, vglob, nil
}

// MatchTags reports whether any tag pair matches both glob patterns.
func MatchTags(tags map[string]string, kglob, vglob string) bool {
	km, err := compileGlob(kglob)
	if err != nil {
		return false
	}
	vm, err := compileGlob(vglob)
	if err != nil {
		return false
	}
	for k, v := range tags {
		if km.MatchString(k) && vm.MatchString(v) {
			return true
		}
	}
	return false
}

// GlobMatch reports whether s matches the shell glob pattern, anchored and
// case-sensitive.
func GlobMatch(pattern, s string) bool {
	m, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return m.MatchString(s)
}

// compileGlob translates a shell glob into an anchored regexp: `*` matches
// any run, `?` any single character, everything else literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`\A`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`\z`)
	return regexp.Compile(b.String())
}
