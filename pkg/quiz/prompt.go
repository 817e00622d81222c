package quiz

import "strings"

const systemPrompt = `You are an automated quiz generator for educational articles. You write precise, unambiguous multiple-choice questions grounded only in the text you are given.`

const instructions = `Read the article below and create EXACTLY ONE multiple-choice question that tests understanding of its most specific, distinctive content.

Rules:
- Provide exactly 4 options.
- The correct answer must be one of the options, copied exactly.
- Give a confidence_score between 0 and 1.
- Do NOT repeat or paraphrase common generic questions such as "What is the main topic of the article?".
- Return ONLY valid JSON with the keys question, options, correct_answer and confidence_score.`

// BuildPrompt renders the generation prompt for one article.
func BuildPrompt(articleText string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nARTICLE CONTENT:\n----------------\n")
	b.WriteString(strings.TrimSpace(articleText))
	b.WriteString("\n")
	return b.String()
}
