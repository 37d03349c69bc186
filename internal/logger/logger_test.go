package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("stream started", KeyResource, "videos/clip.bin", KeyBytesStreamed, 4096)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "stream started" {
		t.Errorf("msg = %v, want stream started", entry["msg"])
	}
	if entry[KeyResource] != "videos/clip.bin" {
		t.Errorf("%s = %v, want videos/clip.bin", KeyResource, entry[KeyResource])
	}
	if entry[KeyBytesStreamed] != float64(4096) {
		t.Errorf("%s = %v, want 4096", KeyBytesStreamed, entry[KeyBytesStreamed])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "json", false)

	Debug("not logged")
	Info("not logged either")
	Warn("logged")

	out := buf.String()
	if strings.Contains(out, "not logged") {
		t.Errorf("output contains filtered entries:\n%s", out)
	}
	if !strings.Contains(out, "logged") {
		t.Errorf("output missing warn entry:\n%s", out)
	}

	SetLevel("DEBUG")
	buf.Reset()
	Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug entry missing after SetLevel(DEBUG):\n%s", buf.String())
	}
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	SetLevel("CHATTY")

	Info("still info")
	if !strings.Contains(buf.String(), "still info") {
		t.Error("invalid level changed filtering")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("plain entry", KeyBackend, "memory")

	out := buf.String()
	if !strings.Contains(out, "plain entry") {
		t.Errorf("text output missing message:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("text output contains ANSI codes with color disabled:\n%s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	l := With(KeyBackend, "fs")
	l.Info("scoped entry")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry[KeyBackend] != "fs" {
		t.Errorf("%s = %v, want fs", KeyBackend, entry[KeyBackend])
	}
}
