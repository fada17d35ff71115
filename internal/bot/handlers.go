package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telebrief/internal/digest"
	logx "telebrief/pkg/logx"
)

func (r *Router) handleDigest(ctx context.Context, req *Request) error {
	st := r.status()
	_ = req.Reply(ctx, fmt.Sprintf(
		"⏳ Генерирую дайджест за последние %d часа(ов)...\nЭто может занять 1-2 минуты.",
		int(st.Lookback.Hours())))

	res, err := r.runner.RunDigest(ctx, st.Lookback)
	switch {
	case errors.Is(err, ErrRunInProgress):
		return req.Reply(ctx, "⏳ Дайджест уже генерируется, подождите завершения.")
	case errors.Is(err, digest.ErrNoMessages):
		return req.Reply(ctx, "📭 Нет новых сообщений за указанный период.")
	case err != nil:
		// Detail stays in the logs; the chat gets a generic apology.
		req.Log.Error("digest run failed", logx.Err(err))
		return req.Reply(ctx, "❌ Ошибка при генерации дайджеста. Проверьте логи для деталей.")
	case !res.Success():
		return req.Reply(ctx, fmt.Sprintf(
			"⚠️ Дайджест отправлен частично: %d канал(ов) доставлено, ошибки: %s.",
			res.Sent, strings.Join(res.Failed, ", ")))
	default:
		return req.Reply(ctx, "✅ Дайджест готов! Каждый канал отправлен отдельным сообщением.")
	}
}

func (r *Router) handleCleanup(ctx context.Context, req *Request) error {
	res, err := r.runner.CleanupPrevious(ctx)
	if err != nil {
		req.Log.Error("cleanup failed", logx.Err(err))
		return req.Reply(ctx, "❌ Ошибка при удалении предыдущего дайджеста.")
	}
	if res.Deleted == 0 && res.Failed == 0 {
		return req.Reply(ctx, "🧹 Предыдущих сообщений дайджеста нет.")
	}
	if res.Failed > 0 {
		return req.Reply(ctx, fmt.Sprintf(
			"🧹 Удалено %d сообщений, не удалось удалить %d.", res.Deleted, res.Failed))
	}
	return req.Reply(ctx, fmt.Sprintf("🧹 Удалено %d сообщений предыдущего дайджеста.", res.Deleted))
}

func (r *Router) handleStatus(ctx context.Context, req *Request) error {
	st := r.status()

	var b strings.Builder
	b.WriteString("📊 **Статус Telebrief**\n\n")
	fmt.Fprintf(&b, "🤖 Модель: %s\n", st.Model)
	fmt.Fprintf(&b, "📺 Каналов настроено: %d\n", st.Channels)
	if st.NextRunKnown {
		fmt.Fprintf(&b, "⏰ Следующий дайджест: %s\n", st.NextRun.Format("2006-01-02 15:04 MST"))
	} else {
		b.WriteString("⏰ Планировщик не запущен\n")
	}
	b.WriteString("\n**Доступные команды:**\n")
	b.WriteString("/digest - Сгенерировать дайджест сейчас\n")
	b.WriteString("/cleanup - Удалить предыдущий дайджест\n")
	b.WriteString("/status - Показать этот статус\n")
	b.WriteString("/help - Помощь")

	return req.Reply(ctx, b.String())
}

func (r *Router) handleHelp(ctx context.Context, req *Request) error {
	st := r.status()
	text := fmt.Sprintf(`🤖 **Telebrief - дайджесты Telegram-каналов**

Я автоматически генерирую ежедневные дайджесты из ваших Telegram-каналов с помощью AI.

**Команды:**

/digest - Сгенерировать дайджест за последние %d часа(ов)
/cleanup - Удалить предыдущий дайджест
/status - Показать статус и настройки
/help - Показать эту справку

**Автоматический режим:**
Дайджест генерируется автоматически каждый день в %s (%s)

**Возможности:**
• Обработка каналов на любых языках
• Вывод всегда на русском языке
• Ссылки на оригинальные сообщения`,
		int(st.Lookback.Hours()), st.ScheduleTime, st.Timezone)
	return req.Reply(ctx, text)
}
