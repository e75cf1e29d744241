package ai

// PromptKind selects the system prompt sent with a request.
type PromptKind string

const (
	KindChat       PromptKind = "chat"
	KindJoke       PromptKind = "joke"
	KindStory      PromptKind = "story"
	KindCompliment PromptKind = "compliment"
)

var systemPrompts = map[PromptKind]string{
	KindChat: "Ты дружелюбный помощник в групповом чате. Отвечай кратко и по делу, " +
		"на русском языке, без лишних вступлений. Если вопрос непонятен, вежливо попроси уточнить.",
	KindJoke: "Ты весёлый собеседник в групповом чате. Расскажи одну короткую смешную шутку " +
		"на русском языке. Без пояснений, только сама шутка.",
	KindStory: "Ты рассказчик в групповом чате. Придумай короткую занимательную историю " +
		"на русском языке, не длиннее пяти предложений.",
	KindCompliment: "Ты доброжелательный собеседник. Сделай искренний комплимент участнику чата " +
		"на русском языке. Одно-два предложения, без пафоса.",
}

// SystemPrompt returns the system prompt for the kind, falling back to chat.
func SystemPrompt(kind PromptKind) string {
	if p, ok := systemPrompts[kind]; ok {
		return p
	}
	return systemPrompts[KindChat]
}
