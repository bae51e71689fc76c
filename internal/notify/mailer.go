package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"automatch/internal/events"
	"automatch/internal/money"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer turns marketplace events into dealer receipts.
type Mailer struct {
	sender sender
	from   string
}

func NewMailer(host string, port int, user, password, from string) *Mailer {
	return &Mailer{
		sender: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

var unlockTemplate = template.Must(template.New("unlock").Parse(`<p>Olá, {{.DealerName}}!</p>
<p>Você desbloqueou o lead <strong>{{.Vehicle}}</strong>.</p>
<ul>
<li>Comprador: {{.BuyerName}}</li>
<li>E-mail: {{.BuyerEmail}}</li>
<li>WhatsApp: {{.BuyerPhone}}</li>
</ul>
<p>Saldo atual: {{.Balance}} créditos.</p>`))

var purchaseTemplate = template.Must(template.New("purchase").Parse(`<p>Olá, {{.DealerName}}!</p>
<p>Recebemos o pagamento de {{.Price}} referente a {{.Credits}} créditos.</p>
<p>Saldo atual: {{.Balance}} créditos.</p>
<p>Pedido: {{.PurchaseID}}</p>`))

func (m *Mailer) HandleLeadUnlocked(_ context.Context, event events.LeadUnlocked) error {
	subject := fmt.Sprintf("Lead desbloqueado: %s", event.Vehicle)
	return m.send(event.DealerEmail, subject, unlockTemplate, event)
}

func (m *Mailer) HandleCreditsPurchased(_ context.Context, event events.CreditsPurchased) error {
	data := struct {
		events.CreditsPurchased
		Price string
	}{event, money.FormatBRL(event.PriceCents)}
	subject := fmt.Sprintf("%d créditos adicionados à sua conta", event.Credits)
	return m.send(event.DealerEmail, subject, purchaseTemplate, data)
}

func (m *Mailer) send(to, subject string, tmpl *template.Template, data any) error {
	if to == "" {
		return errors.New("dealer email missing")
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return errors.Wrap(err, "render email")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())
	if err := m.sender.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send email")
	}
	return nil
}
