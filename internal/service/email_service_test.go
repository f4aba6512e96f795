package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPEmailService_Send(t *testing.T) {
	svc, err := NewSMTPEmailService("mail.local", 0, "user", "pass", "Laundry <no-reply@laundry.local>")
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	svc.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, svc.Send(context.Background(), "student@example.com", "Hello", "<p>hi</p>"))

	assert.Equal(t, "mail.local:587", gotAddr)
	assert.Equal(t, "no-reply@laundry.local", gotFrom)
	assert.Equal(t, []string{"student@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "<p>hi</p>"))
}

func TestSMTPEmailService_RejectsHeaderInjection(t *testing.T) {
	svc, err := NewSMTPEmailService("mail.local", 25, "", "", "a@b.com")
	require.NoError(t, err)
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send")
		return nil
	}

	assert.Error(t, svc.Send(context.Background(), "x@y.com\r\nBcc: z@w.com", "Hi", ""))
	assert.Error(t, svc.Send(context.Background(), "x@y.com", "", ""))
}

func TestSMTPEmailService_WrapsTransportError(t *testing.T) {
	svc, err := NewSMTPEmailService("mail.local", 25, "", "", "a@b.com")
	require.NoError(t, err)
	boom := errors.New("421 try later")
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	assert.ErrorIs(t, svc.Send(context.Background(), "x@y.com", "Hi", ""), boom)
}

func TestNewEmailService_Providers(t *testing.T) {
	svc, err := NewEmailService("noop", "a@b.com", "", "", 0, "", "")
	require.NoError(t, err)
	assert.IsType(t, NoopEmailService{}, svc)

	_, err = NewEmailService("smtp", "a@b.com", "", "", 0, "", "")
	assert.Error(t, err, "smtp needs a host")

	_, err = NewEmailService("pigeon", "a@b.com", "", "", 0, "", "")
	assert.Error(t, err)
}

func TestOrderStatusEmail_EscapesName(t *testing.T) {
	html, err := OrderStatusEmail(OrderEmailData{OrderID: 3, Name: "<script>", Status: "Prepared", TotalClothes: 2, Amount: "45.50", Currency: "INR"})

	require.NoError(t, err)
	assert.Contains(t, html, "Order #3")
	assert.Contains(t, html, "45.50 INR")
	assert.NotContains(t, html, "<script>")
}
