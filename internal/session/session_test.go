package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dshills/mudstream/internal/telnet"
)

// serve starts a one-shot TCP server and returns its address and a channel
// yielding the accepted connection.
func serve(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			ch <- c
		}
	}()
	return ln.Addr().String(), ch
}

func dial(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	addr, accepted := serve(t)
	s, err := Dial(context.Background(), addr, DefaultOptions())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	select {
	case c := <-accepted:
		t.Cleanup(func() { c.Close() })
		return s, c
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}
	return nil, nil
}

func next(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case m, ok := <-s.Messages():
		if !ok {
			t.Fatal("messages closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, Options{DialTimeout: time.Second})
	if !errors.Is(err, ErrDial) {
		t.Errorf("expected ErrDial, got %v", err)
	}
}

func TestSessionReceivesData(t *testing.T) {
	s, server := dial(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.ID() == "" {
		t.Error("expected session id")
	}

	if _, err := server.Write([]byte("Welcome\r\n")); err != nil {
		t.Fatal(err)
	}

	var got []byte
	for !bytes.Contains(got, []byte("\n")) {
		m := next(t, s)
		got = append(got, m.Data...)
	}
	if string(got) != "Welcome\r\n" {
		t.Errorf("expected Welcome line, got %q", got)
	}
}

func TestSessionSignalOrderAndReply(t *testing.T) {
	s, server := dial(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	payload := []byte("before")
	payload = append(payload, telnet.IAC, telnet.DO, telnet.OptMXP)
	payload = append(payload, "after"...)
	if _, err := server.Write(payload); err != nil {
		t.Fatal(err)
	}

	// Consecutive data messages are merged; the read may split them.
	var seen []string
	for len(seen) < 3 || seen[2] != "data:after" {
		m := next(t, s)
		switch {
		case m.IsSignal():
			seen = append(seen, "signal:"+m.Signal.String())
		case len(seen) > 0 && seen[len(seen)-1] != "signal:markup-on":
			seen[len(seen)-1] += string(m.Data)
		default:
			seen = append(seen, "data:"+string(m.Data))
		}
	}

	if seen[0] != "data:before" || seen[1] != "signal:markup-on" {
		t.Errorf("expected data, signal, data; got %v", seen)
	}

	reply := make([]byte, 3)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(server, reply); err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if !bytes.Equal(reply, []byte{telnet.IAC, telnet.WILL, telnet.OptMXP}) {
		t.Errorf("expected IAC WILL MXP, got %v", reply)
	}
}

func TestSessionSend(t *testing.T) {
	s, server := dial(t)

	if err := s.Send("say \xff"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(server).ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading line: %v", err)
	}
	want := []byte("say \xff\xff\r\n")
	if !bytes.Equal(line, want) {
		t.Errorf("expected %q, got %q", want, line)
	}
}

func TestSessionServerClose(t *testing.T) {
	s, server := dial(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	server.Close()

	select {
	case _, ok := <-s.Messages():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	if err := s.Err(); err != nil {
		t.Errorf("expected clean end of stream, got %v", err)
	}
}

func TestSessionContextCancel(t *testing.T) {
	s, _ := dial(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case <-s.Messages():
	case <-time.After(2 * time.Second):
		t.Fatal("expected read loop to stop")
	}
	if err := s.Send("look"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSessionStartTwice(t *testing.T) {
	s, _ := dial(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	s.Close()
	if err := s.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
}
