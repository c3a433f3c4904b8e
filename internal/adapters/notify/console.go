package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Console implementa ports.SignalSink escribiendo a stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea el sink de consola. Con table=true imprime la tabla
// completa en vez del resumen compacto de una línea.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un sink para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Emit imprime el resultado del ciclo en el modo configurado.
func (c *Console) Emit(_ context.Context, rec domain.CycleRecord, set domain.SignalSet) error {
	if c.table {
		c.printFull(rec, set)
	} else {
		c.printCompact(rec, set)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(rec domain.CycleRecord, set domain.SignalSet) {
	now := rec.StartedAt.Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → exec:%d outlook:%d rej:%d",
		now, rec.Fetched, len(set.Executable), len(set.Outlook), len(set.Rejected))

	shown := 0
	for _, s := range set.Executable {
		if shown >= 4 {
			break
		}
		name := compactName(s.Question, 25)
		fmt.Fprintf(&sb, " | %s %s p%.2f@%.2f edge%.1f%% exp%.1f%% %s",
			name, s.Direction.String(), s.Probability, s.MarketPrice,
			s.NetEdge*100, s.Exposure*100, s.Tier.String())
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla de señales ejecutables y outlook más el resumen
// de rechazos.
func (c *Console) printFull(rec domain.CycleRecord, set domain.SignalSet) {
	now := rec.StartedAt.Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] cycle %s — fetched:%d eligible:%d exec:%d outlook:%d rejected:%d\n",
		now, rec.ID[:8], rec.Fetched, rec.Eligible,
		len(set.Executable), len(set.Outlook), len(set.Rejected))

	c.printTable("EXECUTABLE", set.Executable)
	c.printTable("OUTLOOK", set.Outlook)
	c.printRejections(set.Rejected)

	fmt.Fprintf(c.out, "  Total executable exposure: %.1f%% of bankroll\n\n",
		set.ExecutableExposure()*100)
}

// printTable imprime un bucket de señales como tabla.
func (c *Console) printTable(title string, signals []domain.Signal) {
	if len(signals) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== %s (%d) ===\n", title, len(signals))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Cat", "Dir", "P", "Price", "Raw", "Net", "Conf", "Exp", "Tier", "Src")

	for i, s := range signals {
		src := "est"
		if s.Fallback {
			src = "fb"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(s.Question, s.MarketID, 38),
			string(s.Category),
			s.Direction.String(),
			fmt.Sprintf("%.3f", s.Probability),
			fmt.Sprintf("%.3f", s.MarketPrice),
			fmt.Sprintf("%+.1f%%", s.RawEdge*100),
			fmt.Sprintf("%.1f%%", s.NetEdge*100),
			fmt.Sprintf("%.0f", s.Confidence),
			fmt.Sprintf("%.2f%%", s.Exposure*100),
			s.Tier.String(),
			src,
		)
	}

	table.Render()
}

// printRejections agrupa los rechazos por motivo.
func (c *Console) printRejections(rejected []domain.Signal) {
	if len(rejected) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, s := range rejected {
		counts[s.Reject]++
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	fmt.Fprintf(c.out, "\n  Rejections:\n")
	for _, reason := range reasons {
		fmt.Fprintf(c.out, "    %-35s %d\n", reason, counts[reason])
	}
}

// compactName acorta la pregunta para el modo de una línea.
func compactName(q string, maxLen int) string {
	q = strings.TrimSuffix(strings.TrimSpace(q), "?")
	if len(q) > maxLen {
		q = q[:maxLen-1] + "…"
	}
	return q
}
