package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL   string
	srv   *http.Server
	ln    net.Listener
	calls int32
}

func newIPv4Server(t *testing.T, handler http.HandlerFunc) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), ln: ln}
	s.srv = &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&s.calls, 1)
		handler(w, r)
	})}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *ipv4Server) Calls() int { return int(atomic.LoadInt32(&s.calls)) }

func errorJSON(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "code": code}})
}

func testRequest() GenerateRequest {
	return GenerateRequest{Model: "gpt-4o-mini", Messages: []Message{{Role: "user", Content: "hi"}}, Temperature: 0.2}
}

func TestGenerateSendsChatCompletion(t *testing.T) {
	var body map[string]any
	var auth string
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "**ok**"}}}})
	})

	c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL+"/")
	resp, err := c.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "**ok**" {
		t.Fatalf("unexpected text: %q", resp.Text())
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("authorization header = %q", auth)
	}
	if body["model"] != "gpt-4o-mini" || body["temperature"] != 0.2 {
		t.Fatalf("unexpected payload: %v", body)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %v", body["messages"])
	}
	if _, ok := body["stream"]; ok {
		t.Fatalf("stream must not be requested: %v", body)
	}
}

func TestGenerateDoesNotRetry(t *testing.T) {
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		errorJSON(w, http.StatusServiceUnavailable, "", "overloaded")
	})
	c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
	_, err := c.Generate(context.Background(), testRequest())
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if srv.Calls() != 1 {
		t.Fatalf("expected one call, got %d", srv.Calls())
	}
}

func TestGenerateClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		msg    string
		check  func(error) bool
	}{
		{"auth", http.StatusUnauthorized, "invalid_api_key", "Incorrect API key provided", func(err error) bool {
			var e *AuthError
			return errors.As(err, &e)
		}},
		{"quota", http.StatusTooManyRequests, "insufficient_quota", "You exceeded your current quota", func(err error) bool {
			var e *QuotaExceededError
			return errors.As(err, &e)
		}},
		{"rate limit", http.StatusTooManyRequests, "rate_limit_exceeded", "slow down", func(err error) bool {
			var e *RateLimitError
			return errors.As(err, &e)
		}},
		{"model", http.StatusNotFound, "model_not_found", "The model does not exist", func(err error) bool {
			var e *ModelNotFoundError
			return errors.As(err, &e)
		}},
		{"bad request", http.StatusBadRequest, "", "bad req", func(err error) bool {
			var e *BadRequestError
			return errors.As(err, &e)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
				errorJSON(w, tc.status, tc.code, tc.msg)
			})
			c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
			_, err := c.Generate(context.Background(), testRequest())
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected provider message in error, got: %v", err)
			}
		})
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		errorJSON(w, http.StatusBadRequest, "bad_request", "bad req")
	})
	c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
	_, err := c.Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestGenerateMalformedResponses(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})
		c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
		if _, err := c.Generate(context.Background(), testRequest()); !errors.Is(err, ErrNoChoices) {
			t.Fatalf("expected ErrNoChoices, got %v", err)
		}
	})
	t.Run("not json", func(t *testing.T) {
		srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>gateway</html>`))
		})
		c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
		_, err := c.Generate(context.Background(), testRequest())
		if err == nil || !strings.Contains(err.Error(), "decode response") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestGenerateRequiresKeyAndModel(t *testing.T) {
	c := NewClient("", time.Second)
	if _, err := c.Generate(context.Background(), testRequest()); err == nil {
		t.Fatal("expected missing key error")
	}
	c = NewClient("sk-test", time.Second)
	req := testRequest()
	req.Model = ""
	if _, err := c.Generate(context.Background(), req); err == nil {
		t.Fatal("expected empty model error")
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"7":                             7 * time.Second,
		"Wed, 21 Oct 2026 07:28:00 GMT": 0,
		"":                              0,
		"-3":                            0,
	}
	for header, want := range cases {
		t.Run(header, func(t *testing.T) {
			srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
				if header != "" {
					w.Header().Set("Retry-After", header)
				}
				errorJSON(w, http.StatusTooManyRequests, "rate_limit_exceeded", "slow down")
			})
			c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
			_, err := c.Generate(context.Background(), testRequest())
			var rl *RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("expected RateLimitError, got %v", err)
			}
			if rl.RetryAfter != want {
				t.Fatalf("RetryAfter = %v, want %v", rl.RetryAfter, want)
			}
		})
	}
}

func TestGenerateDecodesUsageAndRequestID(t *testing.T) {
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_ok_42")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o-mini-2024-07-18",` +
			`"choices":[{"message":{"role":"assistant","content":"fine"}}],` +
			`"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`))
	})
	c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
	resp, err := c.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.ID != "chatcmpl-1" || resp.Model != "gpt-4o-mini-2024-07-18" || resp.RequestID != "req_ok_42" {
		t.Fatalf("unexpected response metadata: %+v", resp)
	}
	if resp.Usage != (Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}) {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestGenerateOmitsMaxTokens(t *testing.T) {
	var body map[string]any
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	})
	c := NewClientWithBaseURL("sk-test", 2*time.Second, srv.URL)
	if _, err := c.Generate(context.Background(), testRequest()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, ok := body["max_tokens"]; ok {
		t.Fatalf("max_tokens must not be sent: %v", body)
	}
}
