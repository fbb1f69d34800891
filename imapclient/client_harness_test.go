package imapclient_test

import (
	"io"
	"testing"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/imapclient"
)

// testUsername is the Dovecot mail user the test harness execs as. The
// doveadm exec command authenticates the IMAP process as this user directly,
// so commands run against it don't need a LOGIN round-trip.
const testUsername = "testuser"

// newClientServerPair starts a Dovecot IMAP process and returns a client
// connected to it, advanced to the requested connection state.
func newClientServerPair(t *testing.T, state imap.ConnState) (*imapclient.Client, io.Closer) {
	t.Helper()

	conn, server := newDovecotClientServerPair(t)

	client := imapclient.New(conn, nil)
	if err := client.WaitGreeting(); err != nil {
		server.Close()
		t.Fatalf("WaitGreeting() = %v", err)
	}

	if state >= imap.ConnStateSelected {
		if _, err := client.Select("INBOX", nil).Wait(); err != nil {
			client.Close()
			server.Close()
			t.Fatalf("Select(INBOX) = %v", err)
		}
	}

	return client, server
}
