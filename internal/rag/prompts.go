package rag

// systemPrompt grounds the answer in retrieved passages and forbids
// making up information the context does not contain.
const systemPrompt = "You are a helpful AI assistant that answers questions based on the provided context. " +
	"If you don't know the answer or can't find it in the context, say so - don't make up information. " +
	"Keep your answers concise and relevant to the query."

// historyPrompt instructs the model to rewrite a follow-up question
// into a standalone search query using the conversation history.
const historyPrompt = "Given the conversation history and a question, help identify relevant search terms. " +
	"Rephrase the question to include context from the conversation history. " +
	"Output only the rephrased question."

// Apology is the only failure text a client ever sees. Root causes are
// logged server-side and never leak into responses.
const Apology = "I apologize, but I encountered an error processing your request."
