package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
)

// Sender delivers reminder e-mails through an SMTP server.
type Sender struct {
	// addr is the host:port of the SMTP server.
	addr string
	// from is used as the "From" address in the emails that are sent.
	from string
	// auth holds the PLAIN credentials of the sending account; nil disables auth.
	auth smtp.Auth
	// send is smtp.SendMail, replaceable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSender creates a Sender for the given SMTP host and port.
// An empty password skips authentication (useful against a local relay).
func NewSender(host string, port int, from, password string) *Sender {
	s := &Sender{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
		send: smtp.SendMail,
	}
	if password != "" {
		s.auth = smtp.PlainAuth("", from, password, host)
	}
	return s
}

// Ping dials the SMTP server to check that it is reachable.
func (s *Sender) Ping() error {
	c, err := smtp.Dial(s.addr)
	if err != nil {
		return fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("cannot close the SMTP connection: %v", err)
	}
	return nil
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<html>
	<body style="font-family: sans-serif;">
		<h1>Hello, {{.Name}}!</h1>
		{{if .Habits}}<p>Here is what is on your list today:</p>
		<ul>{{range .Habits}}
			<li>{{.}}</li>{{end}}
		</ul>{{else}}<p>You have no active habits yet. Why not start one today?</p>{{end}}
		<p>Keep the streak alive.</p>
	</body>
</html>
`))

// BuildReminder renders the full MIME message (headers and HTML body) of a reminder.
func (s *Sender) BuildReminder(to, name string, habits []string) ([]byte, error) {
	headers := map[string]string{
		"From":         s.from,
		"To":           to,
		"Subject":      "Your habit reminder",
		"MIME-version": "1.0",
		"Content-Type": "text/html; charset=\"UTF-8\"",
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, headers[k])
	}
	buf.WriteString("\r\n")

	data := struct {
		Name   string
		Habits []string
	}{Name: name, Habits: habits}
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render reminder: %w", err)
	}
	return buf.Bytes(), nil
}

// SendReminder sends a reminder listing the given habits to one recipient.
func (s *Sender) SendReminder(to, name string, habits []string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}

	message, err := s.BuildReminder(to, name, habits)
	if err != nil {
		return err
	}

	if err := s.send(s.addr, s.auth, s.from, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
