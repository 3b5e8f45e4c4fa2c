package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/document"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/events"
	"github.com/eventmarket/api/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (database.NotificationPreference, error)
}

type Notifier struct {
	store   Store
	mailer  Mailer
	baseURL string
	logger  *zap.Logger
}

func NewNotifier(store Store, mailer Mailer, baseURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: store, mailer: mailer, baseURL: baseURL, logger: logger}
}

// Handle is an event bus subscriber. Delivery failures are logged only.
func (n *Notifier) Handle(topic string, ev events.ProposalEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logging.WithLogger(ctx, n.logger)

	if err := n.notify(ctx, topic, ev); err != nil {
		n.logger.Error("proposal notification failed",
			zap.String("topic", topic),
			zap.String("invoice_id", ev.InvoiceID.String()),
			zap.Error(err),
		)
	}
}

func (n *Notifier) notify(ctx context.Context, topic string, ev events.ProposalEvent) error {
	switch topic {
	case events.TopicProposalSent:
		if ev.ClientEmail == "" {
			return nil
		}
		body, err := render(sentTmpl, n.view(ev))
		if err != nil {
			return err
		}
		return n.mailer.Send(ctx, Message{
			To:      ev.ClientEmail,
			Subject: fmt.Sprintf("Your event proposal %s", ev.InvoiceNumber),
			HTML:    body,
		})

	case events.TopicProposalResponded:
		return n.notifyCreator(ctx, ev, respondedTmpl, func(p database.NotificationPreference) bool { return p.ProposalUpdates },
			fmt.Sprintf("Proposal %s was %s", ev.InvoiceNumber, statusLabel(ev.Status)))

	case events.TopicInvoicePaid:
		return n.notifyCreator(ctx, ev, paidTmpl, func(p database.NotificationPreference) bool { return p.PaymentUpdates },
			fmt.Sprintf("Proposal %s has been paid", ev.InvoiceNumber))
	}
	return nil
}

func (n *Notifier) notifyCreator(ctx context.Context, ev events.ProposalEvent, tmpl *template.Template, wants func(database.NotificationPreference) bool, subject string) error {
	if ev.CreatedBy == uuid.Nil {
		return nil
	}

	prefs, err := n.store.GetNotificationPreferences(ctx, ev.CreatedBy)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prefs = database.NotificationPreference{UserID: ev.CreatedBy, ProposalUpdates: true, PaymentUpdates: true}
	case err != nil:
		return fmt.Errorf("get notification preferences: %w", err)
	}
	if !wants(prefs) {
		return nil
	}

	user, err := n.store.GetUserByID(ctx, ev.CreatedBy)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	body, err := render(tmpl, n.view(ev))
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{To: user.Email, Subject: subject, HTML: body})
}

type emailView struct {
	events.ProposalEvent
	Link        string
	TotalText   string
	StatusLabel string
}

func (n *Notifier) view(ev events.ProposalEvent) emailView {
	return emailView{
		ProposalEvent: ev,
		Link:          fmt.Sprintf("%s/proposals/%s", n.baseURL, ev.Token),
		TotalText:     document.FormatMoney(ev.Total),
		StatusLabel:   statusLabel(ev.Status),
	}
}

func statusLabel(status string) string {
	switch status {
	case enum.InvoiceStatusRevisionRequested:
		return "sent back for revision"
	case "":
		return "updated"
	default:
		return status
	}
}

func render(tmpl *template.Template, v any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

var (
	sentTmpl = template.Must(template.New("sent").Parse(
		`<p>Hi {{.ClientName}},</p>
<p>Your proposal <strong>{{.InvoiceNumber}}</strong> totalling {{.TotalText}} is ready.</p>
<p><a href="{{.Link}}">Review and respond</a></p>`))

	respondedTmpl = template.Must(template.New("responded").Parse(
		`<p>{{.ClientName}} has {{.StatusLabel}} proposal <strong>{{.InvoiceNumber}}</strong>.</p>
{{if .Feedback}}<blockquote>{{.Feedback}}</blockquote>{{end}}`))

	paidTmpl = template.Must(template.New("paid").Parse(
		`<p>Proposal <strong>{{.InvoiceNumber}}</strong> for {{.ClientName}} was paid: {{.TotalText}}.</p>`))
)
