package corpus

// Clean normalizes raw text into the alphabet: letters are upper-cased,
// hyphens, apostrophes and double quotes are dropped, and every other
// run of non-letter bytes becomes a single separator.
func Clean(raw string) string {
	out := make([]byte, 0, len(raw))
	inRun := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c)
			inRun = false
		case c == '-' || c == '\'' || c == '"':
			// dropped, but it still ends a separator run
			inRun = false
		default:
			if !inRun {
				out = append(out, ' ')
				inRun = true
			}
		}
	}
	return string(out)
}
