package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"safereport/internal/config"
	"safereport/internal/models"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// AlertServiceInterface notifies duty staff about urgent reports
type AlertServiceInterface interface {
	NotifyHighPriority(ctx context.Context, report *models.ReportDetail) error
	ShouldNotify(report *models.ReportDetail) bool
	IsEnabled() bool
}

// mailSender is the part of *mail.Dialer the service uses
type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// AlertService mails agency recipients when a report scores above the alert threshold
type AlertService struct {
	cfg    *config.Config
	logger *observability.Logger
	sender mailSender
}

var _ AlertServiceInterface = (*AlertService)(nil)

// NewAlertService creates a new AlertService instance
func NewAlertService(cfg *config.Config, logger *observability.Logger) *AlertService {
	var sender mailSender
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		sender = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &AlertService{
		cfg:    cfg,
		logger: logger,
		sender: sender,
	}
}

// IsEnabled returns whether alert mail can be sent
func (a *AlertService) IsEnabled() bool {
	return a.cfg.Alerts.Enabled && a.cfg.Email.Enabled && a.cfg.Email.SMTP.Host != "" && len(a.cfg.Alerts.Recipients) > 0
}

// ShouldNotify reports whether a stored report crosses the alert threshold
func (a *AlertService) ShouldNotify(report *models.ReportDetail) bool {
	if report == nil || report.IsSpam || report.EmergencyScore == nil {
		return false
	}
	return *report.EmergencyScore >= a.cfg.Alerts.Threshold
}

// NotifyHighPriority sends one mail to every configured recipient
func (a *AlertService) NotifyHighPriority(ctx context.Context, report *models.ReportDetail) (err error) {
	ctx, span := observability.TraceAlertFunction(ctx, "notify_high_priority",
		observability.AttributeReportID(report.ID),
		attribute.Int("alert.recipients", len(a.cfg.Alerts.Recipients)),
	)
	defer observability.FinishSpan(span, &err)

	if !a.IsEnabled() {
		a.logger.Info(ctx, "Alerts disabled, skipping high priority notification", map[string]interface{}{
			"report_id": report.ID,
		})
		return nil
	}
	if a.sender == nil {
		return contextutils.ErrorWithContextf("alert mail is not properly configured")
	}

	body, err := renderAlert(a.cfg.Server.AppBaseURL, report)
	if err != nil {
		return err
	}

	score := 0.0
	if report.EmergencyScore != nil {
		score = *report.EmergencyScore
	}

	m := mail.NewMessage()
	m.SetHeader("From", m.FormatAddress(a.cfg.Email.SMTP.FromAddress, a.cfg.Email.SMTP.FromName))
	m.SetHeader("To", a.cfg.Alerts.Recipients...)
	m.SetHeader("Subject", fmt.Sprintf("[SafeReport] %s incident, emergency score %.1f", report.IncidentType, score))
	m.SetBody("text/html", body)

	if err = a.sender.DialAndSend(m); err != nil {
		a.logger.Error(ctx, "Failed to send high priority alert", err, map[string]interface{}{
			"report_id": report.ID,
		})
		return contextutils.WrapError(err, "failed to send alert email")
	}

	recipients := make([]string, 0, len(a.cfg.Alerts.Recipients))
	for _, r := range a.cfg.Alerts.Recipients {
		recipients = append(recipients, contextutils.MaskEmail(r))
	}
	a.logger.Info(ctx, "High priority alert sent", map[string]interface{}{
		"report_id":       report.ID,
		"emergency_score": score,
		"recipients":      strings.Join(recipients, ","),
	})
	return nil
}

var alertTemplate = template.Must(template.New("high_priority_alert").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>High priority report</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #c62828; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .button { display: inline-block; background-color: #c62828; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>High priority {{.Type}} report</h1>
        </div>
        <div class="content">
            <p><strong>Emergency score:</strong> {{printf "%.2f" .Score}}</p>
            <p><strong>Submitted:</strong> {{.Submitted}}</p>
            {{if .Address}}<p><strong>Location:</strong> {{.Address}}</p>{{end}}
            <p>{{.Excerpt}}</p>
            <div style="text-align: center;">
                <a href="{{.Link}}" class="button">Open in triage queue</a>
            </div>
        </div>
    </div>
</body>
</html>`))

func renderAlert(appBaseURL string, report *models.ReportDetail) (string, error) {
	excerpt := report.Description
	if r := []rune(excerpt); len(r) > 280 {
		excerpt = string(r[:280]) + "..."
	}
	score := 0.0
	if report.EmergencyScore != nil {
		score = *report.EmergencyScore
	}
	address := ""
	if report.Location != nil {
		address = report.Location.Address
	}

	var buf strings.Builder
	err := alertTemplate.Execute(&buf, map[string]interface{}{
		"Type":      string(report.IncidentType),
		"Score":     score,
		"Submitted": report.CreatedAt.Format("2006-01-02 15:04 MST"),
		"Address":   address,
		"Excerpt":   excerpt,
		"Link":      strings.TrimRight(appBaseURL, "/") + "/reports/" + report.ID,
	})
	if err != nil {
		return "", contextutils.WrapError(err, "failed to execute alert template")
	}
	return buf.String(), nil
}
