package server

import "strings"

// historyMarker prefixes replayed frames so clients can separate backlog
// from live traffic.
const historyMarker = "HISTORY:"

// parseFrame splits an inbound "author|content" frame. Frames without the
// separator or with an empty author or content are malformed and dropped.
// Content may itself contain the separator.
func parseFrame(frame []byte) (author, content string, ok bool) {
	author, content, found := strings.Cut(string(frame), "|")
	if !found || author == "" || content == "" {
		return "", "", false
	}
	return author, content, true
}

// renderMessage formats a live broadcast frame.
func renderMessage(author, content string) string {
	return "<b>" + author + "</b>: " + content
}

// renderHistory formats a replayed frame.
func renderHistory(author, content string) string {
	return historyMarker + renderMessage(author, content)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
