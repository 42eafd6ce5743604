package vfs

// Match reports whether name matches a host wildcard pattern.
//
// "*" matches any run of characters, "?" matches exactly one character.
// Every other character matches itself: the comparison is case-sensitive.
// An empty pattern matches everything.
func Match(pattern, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	p, n := []rune(pattern), []rune(name)

	// star backtracking: remember the last '*' and the name position it was tried at
	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
