package render

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()

	// telegramPolicy оставляет только теги, которые понимает Telegram в режиме HTML.
	telegramPolicy = newTelegramPolicy()

	telegramReplacer = strings.NewReplacer(
		"<h2>", "<b>", "</h2>", "</b>\n",
		"<h3>", "<b>", "</h3>", "</b>\n",
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<li>", "• ", "</li>", "\n",
		"</p>", "\n\n",
		"<br>", "\n", "<br/>", "\n",
	)
)

func newTelegramPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	return p
}

// HTML превращает ответ модели в безопасный HTML-фрагмент.
// Ответ может быть Markdown или уже HTML; результат всегда проходит санитайзер.
func HTML(text string) string {
	text = strings.TrimSpace(StripFence(text))
	if text == "" {
		return ""
	}
	if looksLikeHTML(text) {
		return strings.TrimSpace(policy.Sanitize(text))
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "<p>" + policy.Sanitize(text) + "</p>"
	}
	return strings.TrimSpace(policy.Sanitize(buf.String()))
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	for _, tag := range []string{"<p>", "<div", "<section", "<h2", "<h3", "<ul", "<ol"} {
		if strings.HasPrefix(lower, tag) {
			return true
		}
	}
	return false
}

// StripFence снимает обёртку ```lang ... ``` вокруг ответа модели.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// TelegramHTML упрощает HTML-фрагмент брифинга до разметки Telegram.
func TelegramHTML(fragment string) string {
	text := telegramReplacer.Replace(fragment)
	text = telegramPolicy.Sanitize(text)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
