package notes

// IsVersion reports whether a milestone title looks like a version number:
// an optional leading v or V followed by nothing but digits and dots.
func IsVersion(name string) bool {
	if name == "" {
		return false
	}
	part := name
	if part[0] == 'v' || part[0] == 'V' {
		part = part[1:]
	}
	if part == "" {
		return false
	}
	for _, r := range part {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
