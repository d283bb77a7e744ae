package channel

import "strings"

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// toTelegramHTML converts the markdown subset summarizers tend to emit
// (fenced code, inline code, bold, italic) to Telegram HTML. Unpaired
// markers are left as they are.
func toTelegramHTML(s string) string {
	s = htmlEscaper.Replace(s)
	s = replacePairs(s, "```", "<pre>", "</pre>", stripFenceLanguage)
	s = replacePairs(s, "`", "<code>", "</code>", nil)
	s = replacePairs(s, "**", "<b>", "</b>", nil)
	s = replacePairs(s, "*", "<i>", "</i>", nil)
	return s
}

func replacePairs(s, marker, open, close string, inner func(string) string) string {
	var sb strings.Builder
	for {
		start := strings.Index(s, marker)
		if start == -1 {
			break
		}
		end := strings.Index(s[start+len(marker):], marker)
		if end == -1 {
			break
		}
		end += start + len(marker)

		body := s[start+len(marker) : end]
		if inner != nil {
			body = inner(body)
		}
		sb.WriteString(s[:start])
		sb.WriteString(open)
		sb.WriteString(body)
		sb.WriteString(close)
		s = s[end+len(marker):]
	}
	sb.WriteString(s)
	return sb.String()
}

// stripFenceLanguage drops a one-word language tag on the first line.
func stripFenceLanguage(code string) string {
	nl := strings.Index(code, "\n")
	if nl < 0 {
		return code
	}
	first := strings.TrimSpace(code[:nl])
	if first != "" && !strings.Contains(first, " ") {
		return code[nl+1:]
	}
	return code
}
