package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/zulandar/dealscout/internal/negotiation"
)

// historyWindow is how many recent turns are shown to the model.
const historyWindow = 5

const buyerSystemPrompt = `You are an expert negotiation agent representing the BUYER on a second-hand marketplace.
Negotiate fairly, logically and strategically.

RULES:
1. Return valid JSON only.
2. Choose one action: "offer", "counter_offer", "accept", "reject" or "walk_away".
3. Include "offer_price" when making an offer or counter offer.
4. Never offer more than your max_budget.
5. Do not jump to extremes.
6. Always include a short human-readable message for the seller.`

const sellerSystemPrompt = `You are an expert negotiation agent representing the SELLER on a second-hand marketplace.
Negotiate professionally and defend your price.

RULES:
1. Return valid JSON only.
2. Choose one action: "accept", "reject" or "counter_offer".
3. Include "offer_price" when countering.
4. Never go below your min_acceptable price.
5. Keep responses short and persuasive.
6. Always include a short human-readable message for the buyer.`

const userPromptTemplate = `Turn Number: {{ .TurnNumber }}

{{ .PrefsLabel }}:
{{ .Prefs }}

Platform Data:
{{ .Market }}

Negotiation History:
{{ if .History }}{{ range .History }}{{ . }}
{{ end }}{{ else }}No offers yet.
{{ end }}{{ if .Questions }}
Product Evaluation Questions:
{{ range .Questions }}- {{ . }}
{{ end }}{{ end }}
Now produce a JSON response with the following structure:

{
  "action": {{ .Actions }},
  "offer_price": number or null,
  "message": "string",
  "confidence": 0.0 to 1.0
}

RETURN JSON ONLY. Do NOT include explanatory text.`

var userPrompt = template.Must(template.New("user").Parse(userPromptTemplate))

type promptData struct {
	TurnNumber int
	PrefsLabel string
	Prefs      string
	Market     string
	History    []string
	Questions  []string
	Actions    string
}

// RenderPrompt builds the prompt for the party on snap's turn.
func RenderPrompt(snap negotiation.Snapshot, questions []string) (Prompt, error) {
	data := promptData{
		TurnNumber: snap.TurnNumber,
		History:    formatHistory(snap.History),
	}

	var prefs any
	var system string
	switch snap.Party {
	case negotiation.Buyer:
		if snap.Buyer == nil {
			return Prompt{}, fmt.Errorf("agent: buyer snapshot has no constraints")
		}
		system = buyerSystemPrompt
		data.PrefsLabel = "Buyer Preferences"
		data.Questions = questions
		data.Actions = `"offer" | "counter_offer" | "accept" | "reject" | "walk_away"`
		prefs = snap.Buyer
	case negotiation.Seller:
		if snap.Seller == nil {
			return Prompt{}, fmt.Errorf("agent: seller snapshot has no constraints")
		}
		system = sellerSystemPrompt
		data.PrefsLabel = "Seller Preferences"
		data.Actions = `"accept" | "reject" | "counter_offer"`
		prefs = snap.Seller
	default:
		return Prompt{}, fmt.Errorf("agent: unknown party %q", snap.Party)
	}

	var err error
	if data.Prefs, err = indentJSON(prefs); err != nil {
		return Prompt{}, err
	}
	if data.Market, err = indentJSON(snap.Market); err != nil {
		return Prompt{}, err
	}

	var buf bytes.Buffer
	if err := userPrompt.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("agent: execute template: %w", err)
	}
	return Prompt{System: system, User: buf.String()}, nil
}

func indentJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("agent: marshal prompt data: %w", err)
	}
	return string(b), nil
}

func formatHistory(history []negotiation.Turn) []string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		price := "no price"
		if p, ok := t.Price(); ok {
			price = fmt.Sprintf("$%.2f", p)
		}
		lines = append(lines, fmt.Sprintf("Turn %d - %s: %s (%s) %q",
			t.Number, strings.ToUpper(string(t.Party)), t.Action, price, t.Message))
	}
	return lines
}
