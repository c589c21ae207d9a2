package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	EventTwoFactorEnabled       = "2fa_enabled"
	EventTwoFactorDisabled      = "2fa_disabled"
	EventBackupCodesRegenerated = "2fa_backup_codes_regenerated"
)

var ErrUnknownEvent = errors.New("unknown security notice")

var subjects = map[string]string{
	EventTwoFactorEnabled:       "Two-factor authentication enabled",
	EventTwoFactorDisabled:      "Two-factor authentication disabled",
	EventBackupCodesRegenerated: "New backup codes generated",
}

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.txt"))

type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config  *config.MailConfig
	appName string
	client  Client
	logger  *logging.Service
}

// NewService returns a service that drops every notice when mail is disabled.
func NewService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	if !cfg.Mail.Enabled {
		if logger != nil {
			logger.Info("mail disabled, security notices will not be sent")
		}
		return &Service{config: &cfg.Mail, appName: cfg.App.Name, logger: logger}, nil
	}

	client, err := newClient(&cfg.Mail)
	if err != nil {
		if logger != nil {
			logger.Error("failed to create mail client",
				zap.Error(err),
				zap.String("host", cfg.Mail.Host),
				zap.Int("port", cfg.Mail.Port))
		}
		return nil, err
	}

	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.Config, logger *logging.Service, client Client) (*Service, error) {
	if cfg.Mail.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	if logger != nil {
		logger.Info("mail service initialized",
			zap.String("host", cfg.Mail.Host),
			zap.Int("port", cfg.Mail.Port),
			zap.String("encryption", cfg.Mail.Encryption),
			zap.String("from_address", cfg.Mail.FromAddress))
	}

	return &Service{
		config:  &cfg.Mail,
		appName: cfg.App.Name,
		client:  client,
		logger:  logger,
	}, nil
}

func newClient(cfg *config.MailConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return client, nil
}

func (s *Service) Enabled() bool {
	return s.client != nil
}

// SendSecurityNotice mails the account owner about a change to their second factor.
func (s *Service) SendSecurityNotice(ctx context.Context, to, event string, data map[string]any) error {
	if !s.Enabled() {
		return nil
	}

	subject, ok := subjects[event]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	body, err := s.render(event, data)
	if err != nil {
		return err
	}

	message := mail.NewMsg()
	if err := message.FromFormat(s.config.FromName, s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(fmt.Sprintf("[%s] %s", s.appName, subject))
	message.SetBodyString(mail.TypeTextPlain, body)

	start := time.Now()
	if err := s.client.DialAndSendWithContext(ctx, message); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send security notice",
				zap.String("event", event),
				zap.Duration("attempt_duration", time.Since(start)),
				zap.Error(err))
		}
		return fmt.Errorf("failed to send security notice: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("security notice sent",
			zap.String("event", event),
			zap.Duration("send_duration", time.Since(start)))
	}
	return nil
}

func (s *Service) render(event string, data map[string]any) (string, error) {
	values := map[string]any{
		"AppName":  s.appName,
		"Username": "there",
		"Time":     time.Now().UTC().Format(time.RFC1123),
	}
	for k, v := range data {
		values[k] = v
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, event+".txt", values); err != nil {
		return "", fmt.Errorf("failed to render %s notice: %w", event, err)
	}
	return buf.String(), nil
}
