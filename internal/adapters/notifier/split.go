package notifier

import "strings"

const telegramMessageLimit = 4096

// splitMessage режет текст на части не длиннее limit рун, по возможности по границе
// абзаца или строки.
func splitMessage(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			if chunk := strings.TrimSpace(string(runes)); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}
		cut := lastBreak(runes[:limit])
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			parts = append(parts, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	return parts
}

// lastBreak возвращает позицию после последнего пустого абзаца, иначе после последнего перевода строки.
func lastBreak(window []rune) int {
	line := -1
	for i := len(window) - 1; i > 0; i-- {
		if window[i] != '\n' {
			continue
		}
		if window[i-1] == '\n' {
			return i + 1
		}
		if line == -1 {
			line = i + 1
		}
	}
	return line
}
