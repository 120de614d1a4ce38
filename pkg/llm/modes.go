package llm

// Mode names an assistant persona. Each mode maps to a fixed system prompt;
// anything outside the known set resolves to ModeNormal.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeCoding    Mode = "coding"
	ModeIdea      Mode = "idea"
	ModePlacement Mode = "placement"
)

// customRulesMarker delimits user-supplied instructions appended to the
// system prompt.
const customRulesMarker = "\n\n[USER CUSTOM INSTRUCTIONS]:\n"

var systemPrompts = map[Mode]string{
	ModeCoding:    "You are Imman-GPT, an expert Coding Assistant. Your goal is to write clean, efficient, and bug-free code. Explanation should be clear and concise. Always prioritize modern best practices.",
	ModeIdea:      "You are Imman-GPT, a Creative Idea Generator. Brainstorm innovative concepts, startup ideas, and unique solutions. Be inspiring, think outside the box, and provide actionable next steps.",
	ModePlacement: "You are Imman-GPT, a Placement Preparation Coach. Help users prepare for interviews, solve aptitude questions, review resumes, and practice technical interview problems. Be professional and motivating.",
	ModeNormal:    "You are Imman-GPT, a friendly and helpful AI assistant. Engage in natural conversation, answer questions, and assist with general tasks.",
}

// SystemPrompt resolves the system prompt for a mode, falling back to
// ModeNormal for unknown values. When customRules is non-empty it is appended
// verbatim after a fixed marker, mode prompt first.
func SystemPrompt(mode Mode, customRules string) string {
	prompt, ok := systemPrompts[mode]
	if !ok {
		prompt = systemPrompts[ModeNormal]
	}
	if customRules != "" {
		prompt += customRulesMarker + customRules
	}
	return prompt
}
