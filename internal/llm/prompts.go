package llm

import "strings"

// SystemPrompt keeps the model locked to pure JSON output. The response is
// decoded straight into AnalysisResult, so any prose would be a hard failure.
const SystemPrompt = `You are an expert counselor assistant. You MUST respond ONLY with valid JSON. No explanations, no markdown, just pure JSON.`

// analysisInstructions describes the exact shape the model must return.
const analysisInstructions = `Analyze this patient-counselor conversation and provide:

1. PROBLEMS: List all problems or concerns the patient is expressing. Each problem should be a short, clear statement. Return as a list.

2. NUDGES: Provide 3-5 actionable suggestions for the counselor. Each nudge should be one short sentence. Return as a list.

3. SENTIMENT: Identify the main emotional tone using simple words like: positive, negative, anxiety, neutral, sadness, anger, fear, hope, etc. Return as a list of 1-3 emotion words that best describe the conversation.

4. FOLLOW_UP: Suggest one open question the counselor could ask next. Return as a single short sentence.

5. RISK: Rate the risk level you read in the patient's words. Return as a list of one or more of: "low", "medium", "high".

Format your response as JSON with these exact keys:
{
"problems": ["problem1", "problem2"],
"nudges": ["nudge1", "nudge2", "nudge3"],
"sentiment": ["word1", "word2"],
"follow_up": "question",
"risk": ["low"]
}

Use simple, clear words. Keep everything short and direct.`

// BuildAnalysisPrompt renders the user prompt for one analysis call: the
// instructions, the conversation so far, and the nudges already surfaced on
// this connection so the model builds on them instead of repeating itself.
func BuildAnalysisPrompt(transcripts []TranscriptEntry, previousNudges []string) string {
	var b strings.Builder
	b.WriteString(analysisInstructions)
	b.WriteString("\n\nConversation:\n")
	for i, entry := range transcripts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(entry.Speaker)
		b.WriteString(": ")
		b.WriteString(entry.Text)
	}

	if len(previousNudges) > 0 {
		b.WriteString("\n\nPrevious suggestions given to counselor:\n")
		for _, nudge := range previousNudges {
			b.WriteString("- ")
			b.WriteString(nudge)
			b.WriteString("\n")
		}
		b.WriteString("\nConsider these previous suggestions when providing new nudges. Build upon them or provide new relevant suggestions based on the current conversation state.")
	}

	return b.String()
}
