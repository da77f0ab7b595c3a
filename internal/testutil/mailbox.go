// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxRejected is returned by a Mailbox for addresses set to fail.
var ErrMailboxRejected = errors.New("mailbox rejected message")

// Mail is a message captured by a Mailbox.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailbox is an in-memory email sender for tests. It is safe for
// concurrent use.
type Mailbox struct {
	mu    sync.Mutex
	mails []Mail
	fail  map[string]bool
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{fail: map[string]bool{}}
}

// FailFor makes every send to addr fail.
func (m *Mailbox) FailFor(addr string) {
	m.mu.Lock()
	m.fail[addr] = true
	m.mu.Unlock()
}

// Send records the message.
func (m *Mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return ErrMailboxRejected
	}
	m.mails = append(m.mails, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Mails returns a copy of all delivered messages.
func (m *Mailbox) Mails() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.mails...)
}

// To returns the messages delivered to addr.
func (m *Mailbox) To(addr string) []Mail {
	var out []Mail
	for _, mail := range m.Mails() {
		if mail.To == addr {
			out = append(out, mail)
		}
	}
	return out
}
