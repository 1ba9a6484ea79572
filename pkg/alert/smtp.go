package alert

import (
	"context"

	"gopkg.in/gomail.v2"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/pkg/config"
)

type smtpSender struct {
	dialer *gomail.Dialer
	sender string
}

func newSMTPSender() alertHandlerInterface {
	smtpConfig := config.GetConfig().SMTP
	return &smtpSender{
		dialer: gomail.NewDialer(smtpConfig.Host, smtpConfig.Port, smtpConfig.User, smtpConfig.Password),
		sender: smtpConfig.Sender,
	}
}

func (s *smtpSender) SendMessageTo(_ context.Context, receiver *model.User, subject, body string) error {
	if receiver.Email == nil {
		klog.Warningf("%s does not have an email address", receiver.Name)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.sender)
	m.SetHeader("To", *receiver.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return s.dialer.DialAndSend(m)
}
