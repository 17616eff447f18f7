package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/events"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// NeedsAWS reports whether any configured integration talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return cfg != nil && (cfg.EventsPublisher == "sqs" || cfg.EmailProvider == "ses")
}

// BuildPublisher assembles the appointment event pipeline: the configured
// transport plus, when a desk address is set, the scheduling desk emailer.
// awsCfg may be nil when NeedsAWS is false. A nil sender falls back to
// BuildEmailSender.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config, sender notify.EmailSender, logger *logging.Logger) (events.Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var transport events.Publisher
	switch cfg.EventsPublisher {
	case "memory":
		transport = events.NewMemoryPublisher()
	case "sqs":
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: sqs publisher requires aws config")
		}
		if cfg.AppointmentQueueURL == "" {
			return nil, fmt.Errorf("bootstrap: sqs publisher requires APPOINTMENT_EVENTS_QUEUE_URL")
		}
		transport = events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.AppointmentQueueURL)
	case "", "none":
	default:
		return nil, fmt.Errorf("bootstrap: unknown EVENTS_PUBLISHER %q", cfg.EventsPublisher)
	}

	var desk events.Publisher
	if cfg.DeskEmail != "" {
		if sender == nil {
			built, err := BuildEmailSender(cfg, awsCfg, logger)
			if err != nil {
				return nil, err
			}
			sender = built
		}
		desk = notify.NewDeskNotifier(sender, cfg.DeskEmail, logger)
	}

	logger.Info("appointment events configured",
		"publisher", cfg.EventsPublisher,
		"email_provider", cfg.EmailProvider,
		"desk_notifications", desk != nil,
	)
	return events.NewFanoutPublisher(transport, desk), nil
}

// BuildEmailSender returns the configured provider, falling back to the
// logging stub when none is configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "", "none":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: sendgrid requires SENDGRID_API_KEY")
		}
		return sender, nil
	case "ses":
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: ses requires aws config")
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}
