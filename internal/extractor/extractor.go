package extractor

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
)

// Extractor parses expenses from user input. The regex grammar handles
// the common "gasté 5000 en pizza" family; anything it cannot parse falls
// back to the language model when an API key is configured.
//
// A nil result with a nil error means the input is unrecognized. That is
// an expected outcome, not a failure.
type Extractor struct {
	llm    *llmClient
	logger *zap.Logger
}

func NewExtractor(cfg *config.Config, logger *zap.Logger) *Extractor {
	var llm *llmClient
	if cfg.Extractor.APIKey != "" {
		llm = newLLMClient(&cfg.Extractor)
	}
	return &Extractor{
		llm:    llm,
		logger: logger,
	}
}

// amountRegex matches money tokens: "5000", "$5000", "5.000,50",
// "1200.50". The optional currency sign may precede the digits.
var amountRegex = regexp.MustCompile(`\$?\s*(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)

// verbRegex strips leading spend verbs so they do not pollute the
// description.
var verbRegex = regexp.MustCompile(`(?i)\b(gast[eé]|pagu[eé]|compr[eé]|puse|sal[ií]ieron|fueron)\b`)

var connectorRegex = regexp.MustCompile(`(?i)^(en|de|por|para|del|la|el)\s+`)

// Extract parses text or media into a structured expense.
func (e *Extractor) Extract(ctx context.Context, text string, media []byte, mimeType string) (*models.ParsedExpense, error) {
	if len(media) == 0 {
		if exp := e.parseText(text); exp != nil {
			return exp, nil
		}
	}

	if e.llm == nil {
		return nil, nil
	}

	exp, err := e.llm.Extract(ctx, text, media, mimeType)
	if err != nil {
		return nil, err
	}
	if exp == nil || exp.AmountCents <= 0 {
		return nil, nil
	}
	if exp.Category == "" {
		exp.Category = Categorize(exp.Description)
	}

	return exp, nil
}

// parseText runs the regex grammar. Returns nil when no positive amount
// is found.
func (e *Extractor) parseText(text string) *models.ParsedExpense {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	loc := amountRegex.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return nil
	}

	amountCents := parseAmountCents(trimmed[loc[2]:loc[3]])
	if amountCents <= 0 {
		return nil
	}

	description := cleanDescription(trimmed[:loc[0]] + " " + trimmed[loc[1]:])
	if description == "" {
		description = "gasto"
	}

	return &models.ParsedExpense{
		AmountCents: amountCents,
		Description: description,
		Category:    Categorize(trimmed),
	}
}

// parseAmountCents converts an amount token to cents, handling both
// "5.000,50" and "5000.50" styles. A '.' followed by exactly three digits
// is a thousands separator.
func parseAmountCents(token string) int64 {
	token = strings.TrimSpace(strings.TrimPrefix(token, "$"))

	dot := strings.LastIndex(token, ".")
	comma := strings.LastIndex(token, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case comma >= 0:
		if len(token)-comma-1 <= 2 {
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case dot >= 0:
		if len(token)-dot-1 == 3 {
			token = strings.ReplaceAll(token, ".", "")
		}
	}

	amount, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}

	return int64(math.Round(amount * 100))
}

// cleanDescription removes spend verbs, leading connectors and extra
// whitespace from the text left over after the amount is cut out.
func cleanDescription(text string) string {
	text = verbRegex.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	text = connectorRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
