package service

import (
	"context"
	"strings"
)

// DefaultPersona instructs the model to answer only from the retrieved context.
const DefaultPersona = `Eres un asistente experto.
Responde en español de forma breve y **EXCLUSIVAMENTE** usando el CONTEXTO.
Si la información no está en el contexto, indícalo claramente.`

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelLister lists the generation models a provider offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// BuildPrompt combines the persona, the question and the retrieved context.
func BuildPrompt(persona, question, context string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = DefaultPersona
	}
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nPREGUNTA:\n")
	b.WriteString(question)
	b.WriteString("\n\nCONTEXTO:\n")
	b.WriteString(context)
	return strings.TrimSpace(b.String())
}
