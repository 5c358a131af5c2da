package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/accp-conference/api/internal/logging"
)

const (
	conferenceName = "ACCP Conference"
	conferenceYear = 2026
)

const (
	subjectPending  = "Registration Received - Pending Verification"
	subjectApproved = "Account Approved - ACCP Conference 2026"
	subjectRejected = "Verification Unsuccessful - ACCP Conference 2026"
)

// Service renders and delivers account lifecycle notifications.
// Every method is safe to call from a goroutine.
type Service struct {
	sender       Sender
	baseURL      string
	supportEmail string
}

func NewService(sender Sender, baseURL, supportEmail string) *Service {
	return &Service{
		sender:       sender,
		baseURL:      strings.TrimRight(baseURL, "/"),
		supportEmail: supportEmail,
	}
}

// SendPendingApproval confirms a registration awaiting review
func (s *Service) SendPendingApproval(ctx context.Context, to, firstName, lastName string) error {
	data := s.baseData(firstName)
	data.FullName = strings.TrimSpace(firstName + " " + lastName)
	return s.deliver(ctx, to, subjectPending, templatePending, data)
}

// SendVerificationApproved tells the registrant they can log in
func (s *Service) SendVerificationApproved(ctx context.Context, to, firstName string) error {
	data := s.baseData(firstName)
	data.LoginURL = s.baseURL + "/login"
	return s.deliver(ctx, to, subjectApproved, templateApproved, data)
}

// SendVerificationRejected carries the reviewer's reason and notes
func (s *Service) SendVerificationRejected(ctx context.Context, to, firstName, reason, notes string) error {
	data := s.baseData(firstName)
	data.Reason = reason
	data.Notes = notes
	data.RegisterURL = s.baseURL + "/register"
	return s.deliver(ctx, to, subjectRejected, templateRejected, data)
}

func (s *Service) baseData(firstName string) templateData {
	return templateData{
		Conference:   conferenceName,
		Year:         conferenceYear,
		SupportEmail: s.supportEmail,
		FirstName:    firstName,
	}
}

func (s *Service) deliver(ctx context.Context, to, subject, name string, data templateData) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(name, data)
	if err != nil {
		logger.Error("failed to render email template", "template", name, "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sender.Send(&Message{To: to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("send %s email: %w", name, err)
	}

	logger.Info("email sent", "template", name, "email", to)
	return nil
}
