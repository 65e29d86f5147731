package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/soyeahso/valet/internal/config"
	"github.com/soyeahso/valet/internal/logging"
)

// IMAPProvider reads a mailbox over IMAP and sends over SMTP.
// Connections are per-call; the IMAP session is not kept open between
// capability invocations.
type IMAPProvider struct {
	cfg config.EmailConfig
	log *logging.Logger
}

// NewIMAPProvider creates a provider for the configured account.
func NewIMAPProvider(cfg config.EmailConfig, log *logging.Logger) *IMAPProvider {
	return &IMAPProvider{cfg: cfg, log: log.Sub("email.imap")}
}

func (p *IMAPProvider) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.IMAPHost, p.cfg.IMAPPort)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if err := c.Login(p.cfg.Address, p.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// Fetch returns up to max recent inbox messages; a non-empty query narrows
// them with a TEXT search.
func (p *IMAPProvider) Fetch(ctx context.Context, query string, max int) ([]Email, error) {
	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("selecting inbox: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	var uids []uint32
	if query != "" {
		criteria := imap.NewSearchCriteria()
		criteria.Text = []string{query}
		uids, err = c.Search(criteria)
		if err != nil {
			return nil, fmt.Errorf("imap search: %w", err)
		}
	} else {
		from := uint32(1)
		if max > 0 && mbox.Messages > uint32(max) {
			from = mbox.Messages - uint32(max) + 1
		}
		for i := from; i <= mbox.Messages; i++ {
			uids = append(uids, i)
		}
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags}, messages)
	}()

	var out []Email
	for msg := range messages {
		out = append(out, envelopeToEmail(msg))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	p.log.Debug().Int("count", len(out)).Str("query", query).Msg("fetched messages")
	return out, nil
}

// Search returns inbox messages matching the query.
func (p *IMAPProvider) Search(ctx context.Context, query string) ([]Email, error) {
	return p.Fetch(ctx, query, 0)
}

// Profile returns the configured address and current inbox size.
func (p *IMAPProvider) Profile(ctx context.Context) (*Profile, error) {
	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("selecting inbox: %w", err)
	}
	return &Profile{Address: p.cfg.Address, MessageCount: int(mbox.Messages)}, nil
}

// Send delivers a plain-text message over SMTP with STARTTLS auth.
func (p *IMAPProvider) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	auth := smtp.PlainAuth("", p.cfg.Address, p.cfg.Password, p.cfg.SMTPHost)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", p.cfg.Address)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, p.cfg.Address, splitRecipients(to), []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	p.log.Info().Str("to", to).Str("subject", subject).Msg("message sent")
	return nil
}

func envelopeToEmail(msg *imap.Message) Email {
	e := Email{Unread: true}
	for _, f := range msg.Flags {
		if f == imap.SeenFlag {
			e.Unread = false
		}
	}
	env := msg.Envelope
	if env == nil {
		return e
	}
	e.ID = env.MessageId
	e.Subject = env.Subject
	e.Date = env.Date
	if len(env.From) > 0 {
		e.From = env.From[0].Address()
	}
	if len(env.To) > 0 {
		e.To = env.To[0].Address()
	}
	return e
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if addr := strings.TrimSpace(p); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
