// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package guard

import (
	"strings"
	"unicode/utf8"
)

// MaxUsernameLength is GitHub's own username length ceiling
const MaxUsernameLength = 39

// unsafeCharacters may never appear in a username
const unsafeCharacters = "<>'\"\\;{}()[]|&$`"

// ValidateUsername rejects missing, overlong, or hostile usernames.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return &ValidationError{Field: "username", Reason: "Username parameter is required (e.g., ?username=value)"}
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return &ValidationError{Field: "username", Reason: "Username exceeds maximum length of 39 characters (GitHub username limit)"}
	case strings.ContainsAny(username, unsafeCharacters):
		return &ValidationError{Field: "username", Reason: "Username contains potentially malicious characters"}
	case hasControlBytes(username):
		return &ValidationError{Field: "username", Reason: "Username contains invalid control characters"}
	}
	return nil
}

// hasControlBytes checks raw bytes against 0x00-0x1F and 0x7F-0x9F.
func hasControlBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b <= 0x1F || (b >= 0x7F && b <= 0x9F) {
			return true
		}
	}
	return false
}

// SanitizeUsername lowercases s, drops every character outside [a-z0-9_-]
// and truncates to MaxUsernameLength. It is idempotent.
func SanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if b.Len() == MaxUsernameLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsLogin reports whether s is non-empty and made only of characters GitHub
// allows in an account login: ASCII letters, digits, '-' and '_'.
func IsLogin(s string) bool {
	if s == "" || len(s) > MaxUsernameLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; !isLoginByte(c) {
			return false
		}
	}
	return true
}

func isLoginByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
}
