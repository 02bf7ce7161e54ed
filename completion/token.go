package completion

import "unicode/utf8"

func isTokenByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '.', b == '$', b == '#', b == '@':
		return true
	case b >= utf8.RuneSelf:
		// multi-byte identifier characters
		return true
	}
	return false
}

// TokenAt returns the token being typed at cursor and its start offset.
// The cursor is a byte offset, clamped to the buffer and moved back to a
// rune boundary.
func TokenAt(buffer string, cursor int) (string, int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(buffer) {
		cursor = len(buffer)
	}
	for cursor > 0 && cursor < len(buffer) && !utf8.RuneStart(buffer[cursor]) {
		cursor--
	}

	start := cursor
	for start > 0 && isTokenByte(buffer[start-1]) {
		start--
	}
	return buffer[start:cursor], start
}
