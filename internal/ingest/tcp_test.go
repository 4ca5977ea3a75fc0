package ingest

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPSourceReadsNewlineDelimitedJSON(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("{\"flight\":\"abc\",\"lat\":1}\n"))
		time.Sleep(50 * time.Millisecond)
	}()

	src, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer src.Close()

	raw, _, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() returned %v", err)
	}
	if raw["flight"] != "abc" {
		t.Errorf("got %v, want flight=abc", raw)
	}
}

func TestTCPSourceNextErrorsOnMalformedLine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("not json\n"))
		time.Sleep(50 * time.Millisecond)
	}()

	src, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer src.Close()

	if _, _, err := src.Next(context.Background()); err == nil {
		t.Error("expected an error for a non-JSON line")
	}
}

func TestDialTCPFailsAgainstUnreachableAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := DialTCP(context.Background(), addr); err == nil {
		t.Error("expected DialTCP to fail against a closed port")
	}
}
