package notify

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags start a new line in the plain-text rendering.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText derives the plain-text alternative of an HTML body.  Links are
// written as "text [href]"; head and style content is dropped.
func HTMLToText(body string) string {
	var (
		lines []string
		cur   strings.Builder
		href  string
		skip  int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			return strings.Join(lines, "\n")
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.Data == "head" || tok.Data == "style" || tok.Data == "script":
				skip++
			case tok.Data == "a":
				for _, a := range tok.Attr {
					if a.Key == "href" {
						href = a.Val
					}
				}
			case blockTags[tok.Data]:
				flush()
			}
		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.Data == "head" || tok.Data == "style" || tok.Data == "script":
				if skip > 0 {
					skip--
				}
			case tok.Data == "a" && href != "":
				cur.WriteString(" [" + href + "]")
				href = ""
			case blockTags[tok.Data]:
				flush()
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if words := strings.Fields(string(z.Text())); len(words) > 0 {
				if cur.Len() > 0 {
					cur.WriteByte(' ')
				}
				cur.WriteString(strings.Join(words, " "))
			}
		}
	}
}
