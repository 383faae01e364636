package main

import (
	"net/url"
	"os"
	"strings"
)

// droppedPaths splits what a terminal pastes for a file drop. Terminals
// differ: some quote each path, some backslash-escape spaces, some send
// file:// URIs one per line. A single line naming an existing file is
// taken whole, so unescaped spaces survive.
func droppedPaths(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !strings.ContainsAny(text, "\n\r") {
		if _, err := os.Stat(text); err == nil {
			return []string{text}
		}
	}

	var paths []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			paths = append(paths, fromURI(cur.String()))
			cur.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case r == '\\' && i+1 < len(runes) && isEscapable(runes[i+1]):
			i++
			cur.WriteRune(runes[i])
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return paths
}

// isEscapable limits backslash unescaping to shell-special characters so
// Windows paths survive
func isEscapable(r rune) bool {
	return strings.ContainsRune(" \t'\"()[]&;$`!*?#~", r)
}

func fromURI(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Host != "" && u.Host != "localhost") {
		return s
	}
	return u.Path
}
