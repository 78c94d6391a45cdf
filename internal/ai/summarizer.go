// Package ai generates short lead qualification summaries via the Gemini API.
package ai

import (
	"context"
	"fmt"
	"strings"

	"funnelboard/internal/boardcache"
	"funnelboard/platform/config"

	"google.golang.org/genai"
)

const summaryInstruction = `Você é um assistente de vendas. Resuma o lead abaixo em no máximo
quatro frases em português: quem é, de onde veio, o valor potencial e qual o
próximo passo sugerido. Use apenas os dados fornecidos, sem inventar nada.`

// Summarizer produces a qualification summary from a lead snapshot.
// A nil Summarizer is valid and reports the feature as disabled.
type Summarizer struct {
	client *genai.Client
	model  string
}

// NewSummarizer returns nil when no API key is configured.
func NewSummarizer(ctx context.Context, cfg config.AIConfig) (*Summarizer, error) {
	if !cfg.IsAIEnabled() {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetGenAIAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Summarizer{
		client: client,
		model:  cfg.GetGenAIModel(),
	}, nil
}

// Enabled reports whether summaries can be generated.
func (s *Summarizer) Enabled() bool {
	return s != nil && s.client != nil
}

// Summarize generates the summary text for a lead.
func (s *Summarizer) Summarize(ctx context.Context, lead boardcache.Lead) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("ai summaries not configured")
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(buildPrompt(lead)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(summaryInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return text, nil
}

// buildPrompt flattens the lead snapshot into labeled lines. Message bodies
// stay out of the prompt; only metadata about the conversation goes in.
func buildPrompt(lead boardcache.Lead) string {
	var b strings.Builder
	write := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	write("Nome", lead.Name)
	write("Telefone", lead.Phone)
	if lead.Email != nil {
		write("Email", *lead.Email)
	}
	if lead.Company != nil {
		write("Empresa", *lead.Company)
	}
	if lead.Notes != nil {
		write("Notas", *lead.Notes)
	}
	if lead.PurchaseValueCents > 0 {
		write("Valor potencial", fmt.Sprintf("R$ %.2f", float64(lead.PurchaseValueCents)/100))
	}
	write("Mensagens não lidas", fmt.Sprintf("%d", lead.UnreadCount))
	if lead.LastMessageAt != nil {
		write("Última mensagem em", lead.LastMessageAt.Format("02/01/2006 15:04"))
	}
	if len(lead.Tags) > 0 {
		names := make([]string, 0, len(lead.Tags))
		for _, tag := range lead.Tags {
			names = append(names, tag.Name)
		}
		write("Etiquetas", strings.Join(names, ", "))
	}
	write("Criado em", lead.CreatedAt.Format("02/01/2006"))

	return b.String()
}
