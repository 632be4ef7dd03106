package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"storefront/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/keighl/postmark"
	"github.com/rs/zerolog"
)

// emailSender is the subset of *postmark.Client the sink needs.
type emailSender interface {
	SendEmail(email postmark.Email) (postmark.EmailResponse, error)
}

var errNoRecipient = errors.New("order has no customer email")

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h2>Thank you for your order, {{.Order.CustomerName}}!</h2>
<p>Order <strong>{{.Order.OrderNumber}}</strong> has been received.</p>
<table>
{{range .Items}}<tr><td>{{.ProductName}} ({{.ProductSKU}})</td><td>x{{.Quantity}}</td><td>${{.Total.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Subtotal: ${{.Order.Subtotal.StringFixed 2}}<br>
Discount: -${{.Order.Discount.StringFixed 2}}<br>
Shipping: ${{.Order.ShippingCost.StringFixed 2}}<br>
<strong>Total: ${{.Order.Total.StringFixed 2}}</strong></p>
<p>Payment method: {{.PaymentMethodLabel}}</p>
{{with .Address}}<p>Deliver to: {{.Street}}, {{.City}}, {{.Province}}{{if .References}} ({{.References}}){{end}}</p>{{end}}
`))

var statusTemplate = template.Must(template.New("status").Parse(`
<h2>{{.StatusMessage}}</h2>
<p>Hello {{.Order.CustomerName}}, your order <strong>{{.Order.OrderNumber}}</strong> is now <strong>{{.NewStatus}}</strong>.</p>
{{if .TrackingNumber}}<p>Tracking number: {{.TrackingNumber}}</p>{{end}}
`))

// EmailSink sends transactional customer emails through Postmark.
type EmailSink struct {
	client emailSender
	from   string
	logger zerolog.Logger
}

// NewEmailSink creates a Postmark-backed email sink.
func NewEmailSink(serverToken, from string, logger zerolog.Logger) *EmailSink {
	return newEmailSink(postmark.NewClient(serverToken, ""), from, logger)
}

func newEmailSink(client emailSender, from string, logger zerolog.Logger) *EmailSink {
	return &EmailSink{
		client: client,
		from:   from,
		logger: logger.With().Str("component", "email-sink").Logger(),
	}
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Deliver implements Sink.
func (s *EmailSink) Deliver(ctx context.Context, e Event) error {
	if e.Order.CustomerEmail == "" {
		return backoff.Permanent(errNoRecipient)
	}

	subject, body, err := renderEmail(e)
	if err != nil {
		return backoff.Permanent(err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(postmark.Email{
		From:     s.from,
		To:       e.Order.CustomerEmail,
		Subject:  subject,
		HtmlBody: body,
		Tag:      string(e.Type),
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug().
		Str("order_number", e.Order.OrderNumber).
		Str("message_id", resp.MessageID).
		Msg("email sent")

	return nil
}

func renderEmail(e Event) (string, string, error) {
	var (
		subject string
		tmpl    *template.Template
	)

	switch e.Type {
	case EventOrderConfirmed:
		subject = fmt.Sprintf("Order confirmation %s", e.Order.OrderNumber)
		tmpl = confirmationTemplate
	case EventStatusChanged:
		subject = fmt.Sprintf("%s - %s", e.StatusMessage, e.Order.OrderNumber)
		if e.NewStatus == model.OrderStatusShipped && e.TrackingNumber != "" {
			subject = fmt.Sprintf("Your order %s is on its way", e.Order.OrderNumber)
		}
		tmpl = statusTemplate
	default:
		return "", "", fmt.Errorf("unsupported event type %q", e.Type)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", e.Type, err)
	}

	return subject, buf.String(), nil
}
