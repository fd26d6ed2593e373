package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solsticehq/solstice/internal/email"
	"github.com/solsticehq/solstice/internal/llm"
	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/secure"
	"github.com/solsticehq/solstice/internal/store"
)

var (
	ErrNotFound = errors.New("subscription not found")
	ErrNotDue   = errors.New("subscription is not due for a check-in")
)

// Generator produces text for a prompt. Satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, cred llm.Credential) (string, error)
}

// Sender delivers a check-in email. Satisfied by *email.Client.
type Sender interface {
	SendCheckIn(ctx context.Context, toEmail, refID string, in email.CheckIn) error
}

// Outcome reports one completed check-in cycle.
type Outcome struct {
	ProcessingTime time.Duration
	NextCheckIn    time.Time
}

// Processor runs the full check-in cycle for one subscription: decrypt the
// stored responses, generate content, email it, and advance the schedule.
// Plaintext responses exist only inside a single Process call.
type Processor struct {
	subs     *store.SubscriptionStore
	keychain *secure.Keychain
	gen      Generator
	mail     Sender
	cred     llm.Credential
	tokens   *TokenSigner
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(subs *store.SubscriptionStore, keychain *secure.Keychain, gen Generator, mail Sender, cred llm.Credential, tokens *TokenSigner, baseURL string, logger *slog.Logger) *Processor {
	return &Processor{
		subs:     subs,
		keychain: keychain,
		gen:      gen,
		mail:     mail,
		cred:     cred,
		tokens:   tokens,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// Process runs one check-in cycle. Eligibility is re-checked against current
// state, so a subscription cancelled or already handled between the due scan
// and this call is skipped rather than double-sent.
func (p *Processor) Process(ctx context.Context, id string) (*Outcome, error) {
	started := p.now().UTC()

	sub, err := p.subs.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	if !sub.Due(started) {
		return nil, ErrNotDue
	}

	var responses map[string]any
	if err := p.keychain.Decrypt(&sub.Responses, &responses); err != nil {
		return nil, fmt.Errorf("subscription %s: %w", id, err)
	}
	defer secure.Scrub(responses)

	prompt, err := buildCheckInPrompt(sub, responses)
	if err != nil {
		return nil, err
	}

	text, err := p.gen.Generate(ctx, prompt, p.cred)
	if err != nil {
		return nil, fmt.Errorf("generate check-in content: %w", err)
	}
	insights, questions := splitGenerated(text)

	var unsubURL string
	if p.tokens != nil && p.tokens.Configured() && p.baseURL != "" {
		token, err := p.tokens.Sign(sub.ID)
		if err != nil {
			// The check-in still goes out; only the link is lost.
			p.logger.Warn("sign unsubscribe token", "subscription_id", sub.ID, "error", err)
		} else {
			unsubURL = fmt.Sprintf("%s/api/check-ins/unsubscribe?token=%s", p.baseURL, token)
		}
	}

	err = p.mail.SendCheckIn(ctx, sub.Email, sub.ID, email.CheckIn{
		Insights:       insights,
		Questions:      questions,
		Frequency:      sub.Frequency,
		UnsubscribeURL: unsubURL,
	})
	if err != nil {
		return nil, fmt.Errorf("send check-in email: %w", err)
	}

	next := sub.Frequency.Next(started)
	if err := p.subs.MarkProcessed(sub.ID, started, next); err != nil {
		return nil, err
	}

	p.logger.Info("check-in processed",
		"subscription_id", sub.ID,
		"frequency", sub.Frequency,
		"next_check_in", next,
	)
	return &Outcome{
		ProcessingTime: p.now().UTC().Sub(started),
		NextCheckIn:    next,
	}, nil
}

const questionsMarker = "Reflection questions:"

// buildCheckInPrompt assembles the generation prompt from the subscriber's
// chosen frameworks, bounded by their analysis depth, and the decrypted
// responses.
func buildCheckInPrompt(sub *model.Subscription, responses map[string]any) (string, error) {
	frameworks := sub.Frameworks
	if sub.AnalysisDepth != "" {
		if max := sub.AnalysisDepth.MaxFrameworks(); len(frameworks) > max {
			frameworks = frameworks[:max]
		}
	}
	lenses := make([]string, len(frameworks))
	for i, f := range frameworks {
		lenses[i] = string(f)
	}

	data, err := json.MarshalIndent(responses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"You are writing a warm, brief %s check-in for someone who filled out a year-in-review reflection. ",
		sub.Frequency,
	)
	fmt.Fprintf(&b,
		"Read their original responses below and write two short paragraphs connecting what they wrote then to where they likely are now, through these lenses: %s. ",
		strings.Join(lenses, ", "),
	)
	fmt.Fprintf(&b,
		"Reference their own words. Do not invent facts they did not write. Then add a line that says exactly %q followed by two or three questions, each on its own line starting with \"- \".\n\n",
		questionsMarker,
	)
	b.Write(data)
	return b.String(), nil
}

// splitGenerated separates generated text into the insight paragraphs and the
// follow-up questions. Models do not always honor the requested shape, so a
// missing marker degrades to insights-only rather than failing the cycle.
func splitGenerated(text string) (insights string, questions []string) {
	lines := strings.Split(text, "\n")
	markerAt := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), questionsMarker) {
			markerAt = i
			break
		}
	}
	if markerAt == -1 {
		return strings.TrimSpace(text), nil
	}

	insights = strings.TrimSpace(strings.Join(lines[:markerAt], "\n"))
	for _, line := range lines[markerAt+1:] {
		line = strings.TrimSpace(line)
		if q, ok := strings.CutPrefix(line, "- "); ok {
			questions = append(questions, strings.TrimSpace(q))
		} else if q, ok := strings.CutPrefix(line, "* "); ok {
			questions = append(questions, strings.TrimSpace(q))
		}
	}
	return insights, questions
}
