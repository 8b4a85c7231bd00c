package http

import (
	"strings"
	"testing"
	"time"
)

func TestResponseChunkedComposition(t *testing.T) {
	w := NewResponse("HTTP/1.1")
	w.SetStatus(StatusOK)
	w.SetHeader("Content-Type", "application/json")
	w.WriteString(`{"ok":`)
	w.WriteString(`true}`)
	w.Finish()

	got := string(w.Take())
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line missing: %q", got)
	}
	if !strings.Contains(got, "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("chunked header missing: %q", got)
	}
	if !strings.Contains(got, "6\r\n{\"ok\":\r\n") || !strings.Contains(got, "5\r\ntrue}\r\n") {
		t.Fatalf("chunk framing wrong: %q", got)
	}
	if !strings.HasSuffix(got, "0\r\n\r\n") {
		t.Fatalf("terminal chunk missing: %q", got)
	}
	if w.CloseAfter() {
		t.Fatal("HTTP/1.1 response should not force close")
	}
}

func TestResponseHTTP10RawBody(t *testing.T) {
	w := NewResponse("HTTP/1.0")
	w.WriteString("plain body")
	w.Finish()

	got := string(w.Take())
	if !strings.Contains(got, "Connection: close\r\n") {
		t.Fatalf("close header missing: %q", got)
	}
	if strings.Contains(got, "Transfer-Encoding") {
		t.Fatalf("HTTP/1.0 must not be chunked: %q", got)
	}
	if !strings.HasSuffix(got, "\r\n\r\nplain body") {
		t.Fatalf("raw body framing wrong: %q", got)
	}
	if !w.CloseAfter() {
		t.Fatal("HTTP/1.0 response must force close")
	}
}

func TestResponseComposeHeadersIdempotent(t *testing.T) {
	w := NewResponse("HTTP/1.1")
	w.ComposeHeaders()
	w.ComposeHeaders()
	w.SetStatus(StatusNotFound) // too late, must be ignored
	w.SetHeader("X-Late", "nope")
	w.Finish()

	got := string(w.Take())
	if strings.Count(got, "HTTP/1.1") != 1 {
		t.Fatalf("headers composed twice: %q", got)
	}
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("late SetStatus took effect: %q", got)
	}
	if strings.Contains(got, "X-Late") {
		t.Fatalf("late header took effect: %q", got)
	}
}

func TestResponseWriteAfterFinish(t *testing.T) {
	w := NewResponse("HTTP/1.1")
	w.Finish()
	if _, err := w.WriteString("late"); err == nil {
		t.Fatal("expected an error writing after Finish")
	}
}

func TestResponseCookiesAndRedirect(t *testing.T) {
	w := NewResponse("HTTP/1.1")
	w.SetCookie(Cookie{
		Name:     "session",
		Value:    "abc",
		Path:     "/",
		Expires:  time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
		HTTPOnly: true,
	})
	w.Redirect("/next", 0)
	w.Finish()

	got := string(w.Take())
	if !strings.HasPrefix(got, "HTTP/1.1 302 Found\r\n") {
		t.Fatalf("redirect status wrong: %q", got)
	}
	if !strings.Contains(got, "Location: /next\r\n") {
		t.Fatalf("location missing: %q", got)
	}
	if !strings.Contains(got, "Set-Cookie: session=abc; Path=/; Expires=Wed, 02 Jan 2030 03:04:05 UTC; HttpOnly\r\n") {
		t.Fatalf("cookie wrong: %q", got)
	}
}

func TestResponseDefaultContentType(t *testing.T) {
	w := NewResponse("HTTP/1.1")
	w.Finish()
	if got := string(w.Take()); !strings.Contains(got, "Content-Type: text/html\r\n") {
		t.Fatalf("default content type missing: %q", got)
	}
}

func TestStatusText(t *testing.T) {
	if StatusText(StatusMethodNotAllowed) != "Method Not Allowed" {
		t.Fatal("405 text wrong")
	}
	if StatusText(799) != "Unknown" {
		t.Fatal("unknown code should map to Unknown")
	}
}
