package fetchmcp

import "unicode/utf8"

// Window returns at most maxLength characters of s starting at character
// startIndex. Characters are Unicode code points, so a window never splits a
// multi-byte sequence. A start at or past the end yields "". Negative
// arguments are treated as zero.
func Window(s string, startIndex, maxLength int) string {
	if startIndex < 0 {
		startIndex = 0
	}
	if maxLength <= 0 {
		return ""
	}

	// Walk the string once to find byte offsets for both ends.
	start, end := -1, len(s)
	n := 0
	for i := range s {
		if n == startIndex {
			start = i
		}
		if n == startIndex+maxLength {
			end = i
			break
		}
		n++
	}
	if start < 0 {
		return ""
	}
	return s[start:end]
}

// RuneLen is the length of s in the unit Window counts.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
