package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stock-backtest-lab/internal/domain"
)

// fakeSMTP accepts one session and records the envelope and data.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt []string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			s.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			reply("250 OK")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSend_NotConfigured(t *testing.T) {
	ctx := context.Background()

	m := NewMailer(Config{To: []string{"ops@example.com"}}, nil)
	assert.ErrorIs(t, m.Send(ctx, "s", "b"), ErrNotConfigured)

	m = NewMailer(Config{Host: "smtp.example.com"}, nil)
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendBacktestSummary(ctx, &domain.BacktestSummary{}), ErrNotConfigured)
}

func TestNewMailer_Defaults(t *testing.T) {
	m := NewMailer(Config{Host: "h", User: "bot@example.com"}, nil)
	assert.Equal(t, 587, m.cfg.Port)
	assert.Equal(t, "bot@example.com", m.cfg.From)
}

func TestSendBacktestSummary_DeliversMessage(t *testing.T) {
	srv := startFakeSMTP(t)

	m := NewMailer(Config{
		Host: "127.0.0.1",
		Port: srv.port(),
		From: "lab@example.com",
		To:   []string{"a@example.com", "b@example.com"},
	}, zaptest.NewLogger(t))
	m.now = func() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) }

	err := m.SendBacktestSummary(context.Background(), &domain.BacktestSummary{Trades: 3, Wins: 2, EndingCash: 1100})
	require.NoError(t, err)
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "lab@example.com", srv.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, srv.rcpt)
	assert.Contains(t, srv.data, "Subject: "+SubjectBacktest+"\r\n")
	assert.Contains(t, srv.data, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, srv.data, "trades: 3\r\n")
	assert.Contains(t, srv.data, "ending_cash: 1100.00\r\n")
}

func TestSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewMailer(Config{Host: "127.0.0.1", Port: port, To: []string{"x@example.com"}}, nil)
	err = m.Send(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect 127.0.0.1:"+strconv.Itoa(port))
}

func TestMessage_NormalizesLineEndings(t *testing.T) {
	m := NewMailer(Config{Host: "h", From: "f@example.com", To: []string{"t@example.com"}}, nil)
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	msg := string(m.message("Hi", "line1\nline2\r\nline3"))
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2\r\nline3"))
	assert.Contains(t, msg, "Date: Tue, 02 Jan 2024 03:04:05 +0000\r\n")
	assert.NotContains(t, strings.ReplaceAll(msg, "\r\n", ""), "\n")
}
