package services

import (
	"bytes"
	"log"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio/internal/config"
	"portfolio/internal/storage"
)

type sentMail struct {
	To, Subject, Body string
}

// fakeMailer records every message instead of sending it
type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	err      error
	disabled bool
}

func (m *fakeMailer) IsEnabled() bool {
	return !m.disabled
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func (m *fakeMailer) SentTo(to string) []sentMail {
	var out []sentMail
	for _, s := range m.Sent() {
		if s.To == to {
			out = append(out, s)
		}
	}
	return out
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode extracts the login code from the newest mail to the admin
func (m *fakeMailer) lastCode(t *testing.T, to string) string {
	t.Helper()
	mails := m.SentTo(to)
	require.NotEmpty(t, mails, "no mail sent to %s", to)
	code := codePattern.FindString(mails[len(mails)-1].Body)
	require.NotEmpty(t, code)
	return code
}

// syncBuffer collects log output written from any goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := log.Writer()
	log.SetOutput(buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return buf
}

func newTestGateway(t *testing.T) *storage.Gateway {
	t.Helper()
	backend, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "site.json"))
	require.NoError(t, err)
	return storage.NewGateway(backend, &config.StorageConfig{
		StatsWindowDays:  30,
		OperationTimeout: 5 * time.Second,
	})
}
