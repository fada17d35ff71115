package digest

import (
	"fmt"
	"strings"
	"time"

	logx "telebrief/pkg/logx"
)

// Formatter renders per-channel summaries into delivery-ready blocks plus an
// optional trailing statistics block. It enforces no length ceiling; that is
// the sender's job.
type Formatter struct {
	useIcons     bool
	includeStats bool
	log          logx.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewFormatter(useIcons, includeStats bool, log logx.Logger) *Formatter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Formatter{
		useIcons:     useIcons,
		includeStats: includeStats,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Format renders one block per channel, in the given channel order, dropping
// channels whose summary is empty or carries the failure marker. The second
// return value is the statistics trailer text, empty when statistics are
// disabled.
func (f *Formatter) Format(channels []ChannelIdentity, summaries map[string]string, byChannel map[string][]Message, lookback time.Duration) ([]Rendered, string) {
	blocks := make([]Rendered, 0, len(channels))
	for _, ch := range channels {
		summary := strings.TrimSpace(summaries[ch.Name])
		if summary == "" || isErrorSummary(summary) {
			if summary != "" {
				f.log.Warn("dropping errored channel summary", logx.String("channel", ch.Name))
			}
			continue
		}
		blocks = append(blocks, Rendered{
			ChannelName: ch.Name,
			Text:        f.renderChannel(ch.Name, summary),
		})
	}

	stats := ""
	if f.includeStats {
		stats = f.renderStatistics(byChannel, lookback)
	}

	f.log.Info("digest formatted", logx.Int("blocks", len(blocks)))
	return blocks, stats
}

// isErrorSummary reports whether a summary is a failure placeholder rather
// than real content.
func isErrorSummary(summary string) bool {
	s := strings.ToLower(summary)
	return strings.Contains(s, "ошибка") || strings.Contains(s, "error")
}

func (f *Formatter) renderChannel(name, summary string) string {
	return fmt.Sprintf("%s **%s**\n\n%s", f.channelIcon(name), name, summary)
}

// channelIcon keyword-matches the channel display name to a category icon; a
// plain bullet when icons are disabled.
func (f *Formatter) channelIcon(name string) string {
	if !f.useIcons {
		return "•"
	}
	lower := strings.ToLower(name)
	for _, c := range iconCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.icon
			}
		}
	}
	return "📺"
}

var iconCategories = []struct {
	icon     string
	keywords []string
}{
	{"💻", []string{"tech", "dev", "code", "программ", "разработ"}},
	{"💰", []string{"crypto", "bitcoin", "финанс", "крипто"}},
	{"📰", []string{"news", "новост"}},
	{"💼", []string{"business", "бизнес", "startup"}},
	{"🔬", []string{"science", "research", "наук"}},
	{"🤖", []string{"ai", "ml", "artificial", "ии", "искусственн"}},
	{"🎨", []string{"design", "дизайн", "ui", "ux"}},
	{"📈", []string{"marketing", "маркетинг", "smm"}},
}

// renderStatistics builds the trailing statistics block: digest date, how
// many channels had traffic, total messages, and the covered window.
func (f *Formatter) renderStatistics(byChannel map[string][]Message, lookback time.Duration) string {
	total := 0
	active := 0
	for _, msgs := range byChannel {
		total += len(msgs)
		if len(msgs) > 0 {
			active++
		}
	}

	end := f.now()
	start := end.Add(-lookback)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Ежедневный дайджест - %s**\n\n", russianDate(end))
	fmt.Fprintf(&b, "📈 **Статистика**: %d каналов, %d сообщений обработано\n", active, total)
	if lookback == 24*time.Hour {
		fmt.Fprintf(&b, "⏱️ Дайджест за: %s - %s UTC",
			start.Format("02.01 15:04"), end.Format("02.01 15:04"))
	} else {
		fmt.Fprintf(&b, "⏱️ Период: последние %d часов", int(lookback.Hours()))
	}
	return b.String()
}

var russianMonths = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

func russianDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), russianMonths[t.Month()-1], t.Year())
}
