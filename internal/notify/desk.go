package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/patient-portal/internal/events"
	"github.com/wolfman30/patient-portal/internal/ptbr"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// DeskNotifier emails the scheduling desk whenever a patient requests or
// cancels an appointment so that a doctor and room can be allocated.
// It consumes appointment events and satisfies events.Publisher.
type DeskNotifier struct {
	sender    EmailSender
	recipient string
	logger    *logging.Logger
}

func NewDeskNotifier(sender EmailSender, recipient string, logger *logging.Logger) *DeskNotifier {
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DeskNotifier{
		sender:    sender,
		recipient: strings.TrimSpace(recipient),
		logger:    logger,
	}
}

// Publish turns the envelope into a desk email. Unknown event types are ignored.
func (d *DeskNotifier) Publish(ctx context.Context, env events.Envelope) error {
	if d.recipient == "" {
		return nil
	}
	msg, ok, err := deskMessage(env)
	if err != nil {
		return err
	}
	if !ok {
		d.logger.Debug("desk notifier: ignoring event", "event_type", env.EventType)
		return nil
	}
	msg.To = d.recipient
	msg.ToName = "Central de Agendamento"
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: desk email for %s: %w", env.Aggregate, err)
	}
	return nil
}

func deskMessage(env events.Envelope) (EmailMessage, bool, error) {
	switch env.EventType {
	case events.TypeAppointmentScheduled:
		var evt events.AppointmentScheduledV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return EmailMessage{}, false, fmt.Errorf("notify: decode %s: %w", env.EventType, err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Nova solicitação de consulta de %s.\n", evt.Specialty)
		fmt.Fprintf(&b, "Data prevista: %s, %s.\n", ptbr.Format(evt.Date, ptbr.FullDate), evt.Time)
		fmt.Fprintf(&b, "Protocolo: %s\n", evt.AppointmentID)
		if evt.PatientID != "" {
			fmt.Fprintf(&b, "Cartão SUS: %s\n", evt.PatientID)
		}
		b.WriteString("Médico e local aguardam definição.\n")
		return EmailMessage{
			Subject: "Nova solicitação: " + evt.Specialty,
			Body:    b.String(),
		}, true, nil
	case events.TypeAppointmentCancelled:
		var evt events.AppointmentCancelledV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return EmailMessage{}, false, fmt.Errorf("notify: decode %s: %w", env.EventType, err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "A consulta %s foi cancelada pelo paciente.\n", evt.AppointmentID)
		if evt.Specialty != "" {
			fmt.Fprintf(&b, "Especialidade: %s\n", evt.Specialty)
		}
		if evt.Date != "" {
			fmt.Fprintf(&b, "Data: %s\n", ptbr.Format(evt.Date, ptbr.LongDate))
		}
		if evt.PatientID != "" {
			fmt.Fprintf(&b, "Cartão SUS: %s\n", evt.PatientID)
		}
		return EmailMessage{
			Subject: "Consulta cancelada: " + evt.AppointmentID,
			Body:    b.String(),
		}, true, nil
	default:
		return EmailMessage{}, false, nil
	}
}

var _ events.Publisher = (*DeskNotifier)(nil)
