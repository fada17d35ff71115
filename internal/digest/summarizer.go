package digest

import (
	"context"
	"fmt"
	"strings"

	logx "telebrief/pkg/logx"
)

// Completer is the single model call the summarizer needs: a system
// directive plus a user prompt in, a text completion out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// promptBodyCap bounds how much of one message body the prompt includes.
const promptBodyCap = 500

// errorMarkerPrefix is the substitute "summary" for a channel whose model
// call failed. The formatter drops summaries carrying it.
const errorMarkerPrefix = "Ошибка при обработке канала: "

const systemPrompt = `Ты - профессиональный ассистент по созданию новостных дайджестов.

КРИТИЧЕСКИ ВАЖНО: Всегда отвечай ТОЛЬКО на русском языке, независимо от языка входных сообщений.

Ты получишь сообщения на разных языках (английский, русский, украинский, китайский, и т.д.).
Твоя задача: проанализировать контент и предоставить качественное резюме на русском языке.

Сохраняй контекст, нюансы и важные детали при переводе и суммаризации.`

// Summarizer produces one synopsis per non-empty channel, one independent
// model call each.
type Summarizer struct {
	completer Completer
	log       logx.Logger
}

func NewSummarizer(completer Completer, log logx.Logger) *Summarizer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Summarizer{completer: completer, log: log}
}

// Summarize maps channel name to synopsis text. Channels with no messages
// are skipped entirely. A failing model call yields the error-marker string
// for that channel, never an error that aborts the rest; no retry.
func (s *Summarizer) Summarize(ctx context.Context, byChannel map[string][]Message) map[string]string {
	summaries := make(map[string]string, len(byChannel))
	for name, msgs := range byChannel {
		if len(msgs) == 0 {
			continue
		}
		summary, err := s.summarizeChannel(ctx, name, msgs)
		if err != nil {
			s.log.Error("summarization failed", logx.String("channel", name), logx.Err(err))
			summaries[name] = errorMarkerPrefix + err.Error()
			continue
		}
		summaries[name] = summary
		s.log.Info("channel summarized", logx.String("channel", name))
	}
	return summaries
}

func (s *Summarizer) summarizeChannel(ctx context.Context, name string, msgs []Message) (string, error) {
	out, err := s.completer.Complete(ctx, systemPrompt, buildPrompt(name, msgs))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func buildPrompt(channelName string, msgs []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Проанализируй следующие сообщения из Telegram-канала "%s" и создай краткое резюме на русском языке.

Сфокусируйся на:
- 📰 Важных новостях и анонсах
- 💬 Ключевых обсуждениях и дебатах
- ✅ Принятых решениях или выводах
- 🔗 Полезных ресурсах и ссылках

Формат ответа:
- 3-7 информативных пунктов (bullet points)
- Каждый пункт: 1-2 предложения
- Используй эмодзи для категоризации
- Если пункт опирается на одно конкретное сообщение, добавь ссылку на него в формате [источник](URL)
- Будь лаконичен но информативен

Сообщения (всего: %d):
---
%s
---

Ответь ТОЛЬКО на русском языке.`, channelName, len(msgs), formatMessages(msgs))
	return b.String()
}

// formatMessages serializes messages as a numbered, timestamped,
// sender-attributed list with bodies capped to bound prompt size.
func formatMessages(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s",
			i+1, m.Timestamp.Format("15:04"), m.SenderName, truncateRunes(m.Text, promptBodyCap))
		if m.Permalink != "" && m.Permalink != "#" {
			fmt.Fprintf(&b, "\n   Ссылка: %s", m.Permalink)
		}
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
