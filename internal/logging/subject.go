package logging

import "strings"

// subject collects the header fields the console handler lifts out of the
// key=value tail.
type subject struct {
	component string
	project   string
	pair      string
	session   string
}

// take consumes a header field and reports whether key was one.
func (s *subject) take(key string, value string) bool {
	switch key {
	case FieldComponent:
		s.component = value
	case FieldProjectID:
		s.project = value
	case FieldLanguagePair:
		s.pair = value
	case FieldSessionID:
		s.session = value
	default:
		return false
	}
	return true
}

// String renders "proj-a en→fr · session 1234abcd", omitting empty parts.
func (s subject) String() string {
	var parts []string
	if p := strings.TrimSpace(s.project); p != "" {
		parts = append(parts, p)
	}
	if p := strings.TrimSpace(s.pair); p != "" {
		parts = append(parts, p)
	}
	head := strings.Join(parts, " ")
	session := strings.TrimSpace(s.session)
	if session == "" {
		return head
	}
	if len(session) > 8 {
		session = session[:8]
	}
	if head == "" {
		return "session " + session
	}
	return head + " · session " + session
}
