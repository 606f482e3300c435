package delivery

import (
	"fmt"
	"strings"

	"quranbot/internal/explainer"
)

const completionText = "🎉 Congratulations! You have completed reading" +
	" the entire Quran!\n\nMay Allah accept your efforts and grant you" +
	" the blessings of His words."

const sectionRuleWidth = 40

// FormatBatchMessage renders one combined plain-text message for a
// batch and its explanation. A degraded explanation gets the fallback
// layout: verse list followed by the raw generator output.
func FormatBatchMessage(refs []explainer.VerseRef, expl explainer.Explanation) string {
	var b strings.Builder

	b.WriteString("🌙 Today's Daily Quran Verses\n\n")

	for i, ref := range refs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "📖 Surah %d: %s - Verse %d", ref.Surah, ref.SurahName, ref.Verse)
	}

	if expl.Degraded {
		b.WriteString("\n\n" + strings.Repeat("─", sectionRuleWidth) + "\n\n")
		b.WriteString(expl.Raw)
		return b.String()
	}

	rule := "\n\n" + strings.Repeat("═", sectionRuleWidth) + "\n\n"

	b.WriteString(rule)
	b.WriteString("🔤 TRANSLITERATIONS:\n\n")
	b.WriteString(expl.Transliterations)
	b.WriteString(rule)
	b.WriteString("📖 ENGLISH TRANSLATIONS:\n\n")
	b.WriteString(expl.Translations)
	b.WriteString(rule)
	b.WriteString("💡 CONTEXT & UNDERSTANDING:\n\n")
	b.WriteString(expl.Commentary)

	return b.String()
}
