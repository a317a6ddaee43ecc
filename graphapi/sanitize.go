package graphapi

// sanitizeJSON rewrites non-standard tokens that some workflow producers leak
// into embedded JSON.  A bare NaN (or Infinity) outside of string context is
// not valid JSON and would fail the whole payload; both become null.  The
// scanner tracks string state and escapes so quoted occurrences are untouched.
func sanitizeJSON(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case matchToken(data, i, "NaN"):
			out = append(out, "null"...)
			i += 2
		case matchToken(data, i, "Infinity"):
			out = append(out, "null"...)
			i += 7
		case matchToken(data, i, "-Infinity"):
			out = append(out, "null"...)
			i += 8
		default:
			out = append(out, c)
		}
	}
	return out
}

func matchToken(data []byte, i int, tok string) bool {
	if i+len(tok) > len(data) || string(data[i:i+len(tok)]) != tok {
		return false
	}
	// the token must not be part of a longer identifier
	if i > 0 && isWordByte(data[i-1]) {
		return false
	}
	if i+len(tok) < len(data) && isWordByte(data[i+len(tok)]) {
		return false
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
