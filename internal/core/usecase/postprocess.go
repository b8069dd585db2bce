package usecase

import (
	"regexp"
	"strings"
)

const emptyAnswerApology = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

var (
	headingPattern       = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldStarPattern      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderPattern     = regexp.MustCompile(`__(.+?)__`)
	bulletPattern        = regexp.MustCompile(`(?m)^[*\-+]\s+`)
	numberedPattern      = regexp.MustCompile(`(?m)^\d+\.\s+`)
	blankLineRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// PostProcessAnswer strips markdown from model output and normalizes bullets
// to "• " so answers render as plain text in chat clients.
func PostProcessAnswer(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return emptyAnswerApology
	}

	answer = strings.TrimSpace(answer)
	answer = strings.ReplaceAll(answer, "Answer:", "")
	answer = strings.ReplaceAll(answer, "Response:", "")
	answer = strings.TrimSpace(answer)

	answer = headingPattern.ReplaceAllString(answer, "$1")
	answer = boldStarPattern.ReplaceAllString(answer, "$1")
	answer = boldUnderPattern.ReplaceAllString(answer, "$1")
	answer = stripSingleMarkers(answer, '*')
	answer = stripSingleMarkers(answer, '_')

	answer = bulletPattern.ReplaceAllString(answer, "• ")
	answer = numberedPattern.ReplaceAllString(answer, "• ")
	answer = blankLineRunsPattern.ReplaceAllString(answer, "\n\n")

	answer = strings.ReplaceAll(answer, "**•", "•")
	answer = strings.ReplaceAll(answer, "**", "")

	lines := strings.Split(answer, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(cleaned) > 0 && cleaned[len(cleaned)-1] != "" {
				cleaned = append(cleaned, "")
			}
			continue
		}
		if strings.HasPrefix(trimmed, "•") && !strings.HasPrefix(trimmed, "• ") {
			trimmed = strings.Replace(trimmed, "•", "• ", 1)
		}
		cleaned = append(cleaned, strings.TrimSpace(trimmed))
	}

	out := strings.Join(cleaned, "\n")
	if strings.TrimSpace(out) == "" {
		return emptyAnswerApology
	}
	return out
}

// stripSingleMarkers removes italic pairs like *text* within a line. A marker
// counts only when neither neighbour is the same character, so bold markers
// and list stars adjacent to each other are left alone.
func stripSingleMarkers(s string, marker rune) string {
	lines := strings.Split(s, "\n")
	for idx, line := range lines {
		lines[idx] = stripLineMarkers([]rune(line), marker)
	}
	return strings.Join(lines, "\n")
}

func stripLineMarkers(r []rune, marker rune) string {
	isLone := func(i int) bool {
		if r[i] != marker {
			return false
		}
		if i > 0 && r[i-1] == marker {
			return false
		}
		return i+1 >= len(r) || r[i+1] != marker
	}

	var b strings.Builder
	for i := 0; i < len(r); {
		if !isLone(i) {
			b.WriteRune(r[i])
			i++
			continue
		}
		closer := -1
		for j := i + 2; j < len(r); j++ {
			if isLone(j) {
				closer = j
				break
			}
		}
		if closer < 0 {
			b.WriteRune(r[i])
			i++
			continue
		}
		b.WriteString(string(r[i+1 : closer]))
		i = closer + 1
	}
	return b.String()
}
