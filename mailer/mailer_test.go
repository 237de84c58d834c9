package mailer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordLogger) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+msg)
}

func (r *recordLogger) Debug(msg string, args ...any) { r.add("DEBUG", msg) }
func (r *recordLogger) Info(msg string, args ...any)  { r.add("INFO", msg) }
func (r *recordLogger) Warn(msg string, args ...any)  { r.add("WARN", msg) }
func (r *recordLogger) Error(msg string, args ...any) { r.add("ERROR", msg) }

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaMailer_PublishesJobKeyedByRecipient(t *testing.T) {
	w := &fakeWriter{}
	m := newKafkaMailer(w, "Acme <no-reply@acme.test>", &recordLogger{})
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	err := m.SendEmail(context.Background(), "jane@acme.test", "Verify", "<p>hi</p>")
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "jane@acme.test", string(msg.Key))
	assert.Equal(t, fixed, msg.Time)

	var job EmailJob
	require.NoError(t, json.Unmarshal(msg.Value, &job))
	assert.Equal(t, "jane@acme.test", job.To)
	assert.Equal(t, "Acme <no-reply@acme.test>", job.From)
	assert.Equal(t, "Verify", job.Subject)
	assert.Equal(t, "<p>hi</p>", job.HTML)

	require.NoError(t, m.Close())
	assert.True(t, w.closed)
}

func TestKafkaMailer_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	m := newKafkaMailer(w, "no-reply@acme.test", &recordLogger{})

	err := m.SendEmail(context.Background(), "jane@acme.test", "Verify", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish email job")
}

func TestLogMailer(t *testing.T) {
	logger := &recordLogger{}
	m := NewLogMailer(logger)

	require.NoError(t, m.SendEmail(context.Background(), "jane@acme.test", "Reset", "body"))
	assert.Equal(t, []string{"INFO email", "DEBUG email body"}, logger.lines)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.SendEmail(ctx, "jane@acme.test", "Reset", "body"))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage(formatFrom("Acme", "no-reply@acme.test"), "jane@acme.test", "Hi\r\nBcc: x", "<b>x</b>"))

	assert.True(t, strings.HasPrefix(msg, "From: Acme <no-reply@acme.test>\r\n"))
	assert.Contains(t, msg, "Subject: Hi  Bcc: x\r\n")
	assert.Contains(t, msg, `Content-Type: text/html; charset="UTF-8"`)
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<b>x</b>"))
	assert.Equal(t, "no-reply@acme.test", formatFrom("", "no-reply@acme.test"))
}

// serveSMTP accepts a single session and records the DATA payload.
func serveSMTP(t *testing.T, ln net.Listener, data chan<- string) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 localhost")
		case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			data <- strings.Join(body, "\n")
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 unsupported")
		}
	}
}

func TestSMTPMailer_SendEmail(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	data := make(chan string, 1)
	go serveSMTP(t, ln, data)

	addr := ln.Addr().(*net.TCPAddr)
	m := NewSMTPMailer(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     addr.Port,
		From:     "no-reply@acme.test",
		FromName: "Acme",
	}, &recordLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, m.SendEmail(ctx, "jane@acme.test", "Verify your email", "<p>link</p>"))

	select {
	case body := <-data:
		r := textproto.NewReader(bufio.NewReader(strings.NewReader(body + "\n\n")))
		header, err := r.ReadMIMEHeader()
		require.NoError(t, err)
		assert.Equal(t, "Verify your email", header.Get("Subject"))
		assert.Equal(t, "jane@acme.test", header.Get("To"))
		assert.Contains(t, body, "<p>link</p>")
	case <-time.After(5 * time.Second):
		t.Fatal("smtp server received no data")
	}
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "no-reply@acme.test"}, &recordLogger{})
	err = m.SendEmail(context.Background(), "jane@acme.test", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp delivery failed")
}
