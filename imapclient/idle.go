package imapclient

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// idleKeepaliveInterval bounds how long an IDLE command runs before the
// client reissues it (DONE followed by a fresh IDLE) to refresh the
// server-side inactivity timer. Many servers drop the connection after 30
// minutes of inactivity (RFC 2177 recommends clients re-issue IDLE every 29
// minutes), so this is the default used when Options.IdleTimeout is zero.
const idleKeepaliveInterval = 29 * time.Minute

// Idle sends an IDLE command.
//
// Unlike other commands, this method blocks until the server acknowledges it.
// On success, the IDLE command is running and other commands cannot be sent.
// The caller must invoke IdleCommand.Close to stop IDLE and unblock the
// client.
//
// While running, the command transparently reissues IDLE every
// Options.IdleTimeout (idleKeepaliveInterval by default) to keep the
// connection alive; the caller observes no interruption in unilateral data
// delivery.
//
// This command requires support for IMAP4rev2 or the IDLE extension.
func (c *Client) Idle() (*IdleCommand, error) {
	cmd := &IdleCommand{client: c, stop: make(chan struct{})}
	if err := cmd.start(); err != nil {
		return nil, err
	}

	runtime.SetFinalizer(cmd, (*IdleCommand).finalize)

	go cmd.keepalive()

	return cmd, nil
}

// IdleCommand is an IDLE command.
//
// Initially, the IDLE command is running. The server may send unilateral
// data. The client cannot send any command while IDLE is running.
//
// Close must be called to stop the IDLE command. If the handle is dropped
// without calling Close, a finalizer best-effort sends DONE to avoid wedging
// the connection; relying on this is discouraged since finalizers run at an
// unspecified time, if ever.
type IdleCommand struct {
	cmd

	client *Client

	mutex  sync.Mutex
	enc    *commandEncoder
	stop   chan struct{}
	closed bool
}

// start sends the IDLE command line and waits for the server's continuation
// request. cmd.mutex must be held, except on the first call from Idle.
func (cmd *IdleCommand) start() error {
	contReq := cmd.client.registerContReq(cmd)
	cmd.enc = cmd.client.beginCommand("IDLE", cmd)
	cmd.enc.flush()

	_, err := contReq.Wait()
	if err != nil {
		cmd.enc.end()
		cmd.enc = nil
		return err
	}

	return nil
}

// sendDone writes the DONE line ending the in-flight IDLE command. cmd.mutex
// must be held.
func (cmd *IdleCommand) sendDone() error {
	cmd.client.setWriteTimeout(cmd.client.options.CmdWriteTimeout)
	_, err := cmd.client.bw.WriteString("DONE\r\n")
	if err == nil {
		err = cmd.client.bw.Flush()
	}
	cmd.enc.end()
	cmd.enc = nil
	return err
}

// keepalive reissues the IDLE command on a timer until Close is called or a
// reissue attempt fails.
func (cmd *IdleCommand) keepalive() {
	timeout := cmd.client.options.IdleTimeout
	if timeout <= 0 {
		timeout = idleKeepaliveInterval
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	for {
		select {
		case <-cmd.stop:
			return
		case <-t.C:
			if err := cmd.reissue(); err != nil {
				return
			}
			t.Reset(timeout)
		}
	}
}

// reissue ends the running IDLE command and immediately starts a new one,
// so the caller's *IdleCommand keeps representing a live IDLE session.
func (cmd *IdleCommand) reissue() error {
	cmd.mutex.Lock()
	defer cmd.mutex.Unlock()

	if cmd.closed || cmd.enc == nil {
		return fmt.Errorf("imapclient: IDLE command already closed")
	}

	done := cmd.cmd.done
	if err := cmd.sendDone(); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	// start resets cmd.cmd via beginCommand with a fresh tag and done
	// channel, so the caller's handle keeps representing one continuous
	// IDLE session across the reissue.
	return cmd.start()
}

// Close stops the IDLE command.
//
// This method blocks until the command to stop IDLE is written, but doesn't
// wait for the server to respond. Callers can use Wait for this purpose.
func (cmd *IdleCommand) Close() error {
	cmd.mutex.Lock()
	defer cmd.mutex.Unlock()

	if cmd.closed {
		return cmd.err
	}
	cmd.closed = true
	close(cmd.stop)
	runtime.SetFinalizer(cmd, nil)

	if cmd.err != nil {
		return cmd.err
	}
	if cmd.enc == nil {
		return fmt.Errorf("imapclient: IDLE command closed twice")
	}

	return cmd.sendDone()
}

// Wait blocks until the IDLE command has completed.
//
// Wait can only be called after Close.
func (cmd *IdleCommand) Wait() error {
	cmd.mutex.Lock()
	closed := cmd.closed
	cmd.mutex.Unlock()

	if !closed {
		return fmt.Errorf("imapclient: IdleCommand.Close must be called before Wait")
	}
	return cmd.cmd.Wait()
}

// finalize is registered with runtime.SetFinalizer so that dropping an
// IdleCommand without calling Close doesn't leave the connection stuck
// inside IDLE forever. Best effort: errors here have no one left to report
// to, so the connection is simply left for the next command to fail against.
func (cmd *IdleCommand) finalize() {
	cmd.mutex.Lock()
	defer cmd.mutex.Unlock()

	if cmd.closed {
		return
	}
	cmd.closed = true
	close(cmd.stop)

	if cmd.enc != nil {
		_ = cmd.sendDone()
	}
}
