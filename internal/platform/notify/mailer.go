// Package notify delivers report documents to the lab inbox over SMTP.
package notify

import (
	"bytes"
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"
)

// Mailer sends rendered reports by email. A zero-configured Mailer is
// disabled and drops every send.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
	to   string
}

func NewMailer(host string, port int, user, pass, from, to string) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from, to: to}
}

// Enabled reports whether SMTP delivery is configured. Host, sender and
// destination inbox must all be set.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != "" && m.from != "" && m.to != ""
}

// SendResultsReport mails the PDF as an attachment. Callers treat delivery
// as best effort.
func (m *Mailer) SendResultsReport(admissionNo, requisitionID string, pdf []byte) error {
	if !m.Enabled() {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", fmt.Sprintf("Results report %s (admission %s)", requisitionID, admissionNo))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Attached is the validated results report for requisition %s, admission number %s.",
		requisitionID, admissionNo))
	msg.Attach(fmt.Sprintf("report-%s.pdf", requisitionID),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(pdf))
			return err
		}))

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send results report: %w", err)
	}
	return nil
}
