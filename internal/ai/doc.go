// Package ai sends completions to hosted language models.
//
// The provider is chosen from the model name: gemini* goes to Gemini,
// llama* and mixtral* to Groq, gpt* and o* to OpenAI and claude* to
// Anthropic. Anything else goes to Groq.
package ai
