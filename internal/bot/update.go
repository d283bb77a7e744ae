package bot

import (
	"strings"
	"unicode"
)

// Update is the closed set of inbound shapes the handler understands.
type Update interface {
	isUpdate()
}

// Command is a "/name args" message. Name is lowercased and stripped of any
// "@botname" suffix.
type Command struct {
	Name string
	Args string
}

type PlainText struct {
	Body string
}

// Unknown covers everything without a text body.
type Unknown struct{}

func (Command) isUpdate()   {}
func (PlainText) isUpdate() {}
func (Unknown) isUpdate()   {}

// Parse classifies a message body. isText is false for updates that carried
// no text at all.
func Parse(body string, isText bool) Update {
	if !isText {
		return Unknown{}
	}
	if !strings.HasPrefix(body, "/") || len(body) < 2 {
		return PlainText{Body: body}
	}

	head, args := body[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i:]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	if head == "" {
		return PlainText{Body: body}
	}
	return Command{Name: strings.ToLower(head), Args: strings.TrimSpace(args)}
}
