package watch

import "regexp"

var (
	// extensionRe captures a trailing ".word" extension.
	extensionRe = regexp.MustCompile(`\.(\w+)$`)
	// bareWordRe matches a lone name with no separator and no extension.
	bareWordRe = regexp.MustCompile(`^\w+$`)
)

// IgnoreFunc reports whether a path found under the root directory should be
// left out of structural monitoring.
type IgnoreFunc func(path string) bool

// NewIgnore returns the predicate for the given recognized extensions. A path
// is ignored when it ends in an extension outside the set, or when it is a
// bare word such as a directory name given without any separator.
//
// The bare-word case almost never matches the absolute paths the root monitor
// produces; it is kept for parity with relative inputs.
func NewIgnore(extensions []string) IgnoreFunc {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = true
	}
	return func(path string) bool {
		if m := extensionRe.FindStringSubmatch(path); m != nil {
			return !allowed[m[1]]
		}
		return bareWordRe.MatchString(path)
	}
}
