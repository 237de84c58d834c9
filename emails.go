package auth

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	verifyEmailPath   = "verify-email"
	resetPasswordPath = "reset-password"
)

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; line-height: 1.5;">
    <h2>{{ .Title }}</h2>
    <p>Hi {{ .Username }},</p>
    <p>{{ .Intro }}</p>
    <p><a href="{{ .Link }}">{{ .Action }}</a></p>
    <p>This link expires in {{ .Expires }}. If you did not request this you can ignore this email.</p>
    <p>{{ .AppName }}</p>
  </body>
</html>`))

type emailView struct {
	Title    string
	Username string
	Intro    string
	Link     string
	Action   string
	Expires  string
	AppName  string
}

// buildLink joins the caller supplied redirect base with the token path.
func buildLink(redirectBase, path, token string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(redirectBase))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", NewValidationError("invalid redirect url", TextCodeValidationFailed,
			"redirectUrl: must be an absolute URL")
	}
	return strings.TrimRight(base.String(), "/") + "/" + path + "/" + url.PathEscape(token), nil
}

func (s *AccountService) renderEmail(view emailView) (string, error) {
	view.AppName = s.opts.AppName
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, view); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email")
	}
	return buf.String(), nil
}

func (s *AccountService) verificationEmail(user *User, link string) (string, string, error) {
	body, err := s.renderEmail(emailView{
		Title:    "Verify your email",
		Username: user.Username,
		Intro:    "Please confirm your email address to activate your account.",
		Link:     link,
		Action:   "Verify email",
		Expires:  s.opts.VerificationTokenTTL.String(),
	})
	return s.opts.AppName + ": verify your email", body, err
}

func (s *AccountService) resetEmail(user *User, link string) (string, string, error) {
	body, err := s.renderEmail(emailView{
		Title:    "Reset your password",
		Username: user.Username,
		Intro:    "We received a request to reset the password for your account.",
		Link:     link,
		Action:   "Reset password",
		Expires:  s.opts.ResetTokenTTL.String(),
	})
	return s.opts.AppName + ": reset your password", body, err
}

func (s *AccountService) sendEmail(ctx context.Context, to, subject, body string) error {
	if s.mailer == nil {
		return goerrors.New("mailer is not configured", goerrors.CategoryInternal).
			WithTextCode(TextCodeMailDeliveryFailed)
	}

	ctx, cancel := s.mailCtx(ctx)
	defer cancel()

	if err := s.mailer.SendEmail(ctx, to, subject, body); err != nil {
		s.logger.Error("email delivery failed", "subject", subject, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeMailDeliveryFailed)
	}
	return nil
}
