package genai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pvanloo/sonoria/internal/genai"
	"github.com/pvanloo/sonoria/internal/jobs"
)

func newClient(t *testing.T, handler http.HandlerFunc, opts ...genai.Option) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := genai.New(srv.URL, "test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresBaseURLAndKey(t *testing.T) {
	t.Parallel()

	if _, err := genai.New("", "key"); err == nil {
		t.Error("empty baseURL should fail")
	}
	if _, err := genai.New("http://localhost", ""); err == nil {
		t.Error("empty apiKey should fail")
	}
}

func TestSynthesize_DecodesAudio(t *testing.T) {
	t.Parallel()

	wantPCM := []byte{0x10, 0x20, 0x30, 0x40}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/audio:synthesize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req struct {
			Text  string `json:"text"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "read this" {
			t.Errorf("text = %q", req.Text)
		}
		if req.Model != "tts-hd" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"audio": base64.StdEncoding.EncodeToString(wantPCM),
		})
	}, genai.WithTTSModel("tts-hd"))

	res, err := c.Synthesize(context.Background(), "read this")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.PCM) != string(wantPCM) {
		t.Errorf("PCM = %v; want %v", res.PCM, wantPCM)
	}
	if res.SampleRate != 24000 || res.Channels != 1 {
		t.Errorf("format = %d Hz %d ch; want 24000 Hz mono", res.SampleRate, res.Channels)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for empty text")
	})
	if _, err := c.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("empty text should fail")
	}
}

func TestSynthesize_InvalidBase64(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audio": "%%% not base64 %%%"})
	})
	if _, err := c.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("invalid base64 payload should fail")
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})
	_, err := c.Synthesize(context.Background(), "hi")
	if !errors.Is(err, genai.ErrRequest) {
		t.Fatalf("err = %v; want ErrRequest", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("err should mention status code, got: %v", err)
	}
}

func TestStartVideoJob_ReturnsName(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/video/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "jobs/abc123"})
	})

	name, err := c.StartVideoJob(context.Background(), "a cat surfing")
	if err != nil {
		t.Fatalf("StartVideoJob: %v", err)
	}
	if name != "jobs/abc123" {
		t.Errorf("name = %q", name)
	}
}

func TestStartVideoJob_MissingName(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})
	if _, err := c.StartVideoJob(context.Background(), "prompt"); !errors.Is(err, genai.ErrRequest) {
		t.Fatalf("err = %v; want ErrRequest", err)
	}
}

func TestVideoJobChecker_PollsUntilDone(t *testing.T) {
	t.Parallel()

	var polls int
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/video/jobs/") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		polls++
		json.NewEncoder(w).Encode(map[string]any{
			"name": "jobs/abc123",
			"done": polls >= 2,
		})
	})

	err := jobs.Wait(context.Background(), time.Millisecond, c.VideoJobChecker("jobs/abc123"))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if polls != 2 {
		t.Errorf("polls = %d; want 2", polls)
	}
}

func TestVideoJobStatus_FailedJob(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name":  "jobs/abc123",
			"done":  true,
			"error": map[string]string{"message": "content policy violation"},
		})
	})

	status, err := c.VideoJobStatus(context.Background(), "jobs/abc123")
	if err != nil {
		t.Fatalf("VideoJobStatus: %v", err)
	}
	if !status.Done || status.Err == nil {
		t.Fatalf("status = %+v; want done with error", status)
	}
	if !strings.Contains(status.Err.Error(), "content policy") {
		t.Errorf("status.Err = %v", status.Err)
	}
}
