package chat

import "fmt"

// chunkSeparator joins relevant chunks before the chunked synthesis.
const chunkSeparator = "\n\n---\n\n"

const searchTermsPrompt = "Analyze this question about a bill and identify key search terms and concepts to look for."

func relevancePrompt(searchTerms string) string {
	return fmt.Sprintf("Determine if this text chunk likely contains information relevant to: %s. Reply only with \"Yes\" or \"No\".", searchTerms)
}

func directSystemPrompt(bill string) string {
	return fmt.Sprintf("You are an expert on government bills and legislation. Answer questions about the following bill: %s. Keep your answers concise, informative, and based on the bill content. The bill content may be truncated.", bill)
}

func directUserPrompt(content, query string) string {
	return fmt.Sprintf("Bill content: %s\n\nQuestion: %s", content, query)
}

func chunkedSystemPrompt(bill string) string {
	return fmt.Sprintf("You are an expert on the bill: %s. Answer the user's question based on the relevant sections provided. Keep your answer concise; the sections may be partial.", bill)
}

func chunkedUserPrompt(content, query string) string {
	return fmt.Sprintf("Relevant sections from the bill:\n\n%s\n\nQuestion: %s", content, query)
}
