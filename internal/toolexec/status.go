package toolexec

import "strconv"

// statusMatches checks a single status code against a pattern: either an
// exact code ("200") or a hundreds wildcard ("2xx", "4xx").
func statusMatches(code int, pattern string) bool {
	if exact, err := strconv.Atoi(pattern); err == nil {
		return code == exact
	}
	if len(pattern) == 3 && pattern[1] == 'x' && pattern[2] == 'x' {
		digit := pattern[0] - '0'
		if digit > 9 {
			return false
		}
		return code/100 == int(digit)
	}
	return false
}

// statusInList reports whether code matches any pattern in patterns.
func statusInList(code int, patterns []string) bool {
	for _, p := range patterns {
		if statusMatches(code, p) {
			return true
		}
	}
	return false
}
