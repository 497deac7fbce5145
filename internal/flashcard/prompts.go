package flashcard

import (
	"encoding/json"
	"fmt"
)

func questionsPrompt(text string, n int) string {
	return fmt.Sprintf("Generate a JSON array of exactly %d distinct question strings based on the text. "+
		"Output only the JSON array with no extra text before or after.\n"+
		`Example format: ["Question 1?", "Question 2?"]`+"\n\n"+
		"Text:\n%s", n, text)
}

func singleQuestionPrompt(text string, existing []string) string {
	avoid, _ := json.Marshal(existing)
	return fmt.Sprintf("Generate one distinct, insightful question based on the text below. "+
		"Do not repeat any of these: %s. "+
		"Output only the question.\n\n"+
		"Text:\n%s", avoid, text)
}

func answerPrompt(text, question string) string {
	return fmt.Sprintf("Based on the text below, answer the question in one concise sentence. "+
		"Output only the answer. Do not repeat the question.\n\n"+
		"Text: %s\n\nQuestion: %s\n\nAnswer:", text, question)
}

func summaryPrompt(text string) string {
	return "Summarize the following text: " + text
}
