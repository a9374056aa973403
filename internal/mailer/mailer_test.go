package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	r.sent = append(r.sent, m...)
	return r.err
}

func TestNewWithoutHostReturnsNoop(t *testing.T) {
	n := New(Config{}, logrus.New())
	_, ok := n.(Noop)
	assert.True(t, ok)
	assert.NoError(t, n.Send(context.Background(), "a@b.test", "hi", "body"))
}

func TestNewWithHostReturnsSMTP(t *testing.T) {
	n := New(Config{Host: "smtp.test", Port: 587, From: "shop@test"}, logrus.New())
	_, ok := n.(*SMTP)
	assert.True(t, ok)
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	rec := &recordingSender{}
	s := &SMTP{dialer: rec, from: "shop@test"}

	require.NoError(t, s.Send(context.Background(), " buyer@test ", "Order AP-1", "thanks"))
	require.Len(t, rec.sent, 1)

	var buf bytes.Buffer
	_, err := rec.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "To: buyer@test")
	assert.Contains(t, out, "Subject: Order AP-1")
	assert.Contains(t, out, "thanks")
}

func TestSMTPSendErrors(t *testing.T) {
	s := &SMTP{dialer: &recordingSender{err: errors.New("refused")}, from: "shop@test"}
	assert.Error(t, s.Send(context.Background(), "", "x", "y"))

	err := s.Send(context.Background(), "a@test", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "a@test", "x", "y"), context.Canceled)
}
