// Package alerts sends email notifications about overdue invoices via
// Resend. Without an API key the notifier degrades to a no-op.
package alerts

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/FACorreiaa/fatura-tracker/internal/domain/invoice"
	"github.com/FACorreiaa/fatura-tracker/pkg/config"
)

// Notifier delivers overdue-invoice digests to the configured admin.
type Notifier struct {
	client     *resend.Client
	fromEmail  string
	adminEmail string
	logger     *slog.Logger
}

// NewNotifier builds the notifier. Missing API key or admin address turn
// sends into logged skips.
func NewNotifier(cfg config.AlertsConfig, logger *slog.Logger) *Notifier {
	var client *resend.Client
	if cfg.ResendAPIKey != "" {
		client = resend.NewClient(cfg.ResendAPIKey)
	}
	return &Notifier{
		client:     client,
		fromEmail:  cfg.FromAddress,
		adminEmail: cfg.AdminEmail,
		logger:     logger,
	}
}

// SendOverdueDigest emails the list of overdue invoices.
func (n *Notifier) SendOverdueDigest(overdue []*invoice.Record) error {
	if len(overdue) == 0 {
		return nil
	}
	if n.client == nil || n.adminEmail == "" {
		n.logger.Warn("resend client not configured, skipping overdue digest",
			slog.Int("overdue", len(overdue)))
		return nil
	}

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{n.adminEmail},
		Subject: fmt.Sprintf("%d faturas vencidas por pagar", len(overdue)),
		Html:    digestHTML(overdue),
	})
	if err != nil {
		return fmt.Errorf("failed to send overdue digest: %w", err)
	}

	n.logger.Info("overdue digest sent",
		slog.String("to", n.adminEmail),
		slog.Int("overdue", len(overdue)))
	return nil
}

func digestHTML(overdue []*invoice.Record) string {
	var b strings.Builder
	b.WriteString("<h2>Faturas vencidas</h2><table border=\"1\" cellpadding=\"4\">")
	b.WriteString("<tr><th>Número</th><th>Emitente</th><th>Vencimento</th><th>Total</th></tr>")
	for _, rec := range overdue {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s %s</td></tr>",
			rec.NumeroFatura, rec.NomeEmitente, rec.DataVencimento, rec.Total, rec.Moeda)
	}
	b.WriteString("</table>")
	return b.String()
}
