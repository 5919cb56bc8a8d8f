package main

import (
	"bytes"
	"strings"
	"testing"

	"wifi-survey/core"
)

func TestDescribe(t *testing.T) {
	got := describe(core.ProgressMessage{Header: "Measuring Wi-Fi (lab)", Status: "Signal strength: 70%\nTCP: -/- Mbps\n"})
	if got != "Measuring Wi-Fi (lab) | Signal strength: 70% | TCP: -/- Mbps" {
		t.Fatalf("describe = %q", got)
	}
}

func TestTerminalSinkPrintsFinalStatus(t *testing.T) {
	var buf bytes.Buffer
	sink := newTerminalSink(&buf)
	sink.Send(core.ProgressMessage{Type: core.MessageUpdate, Header: "Measurement beginning"})
	sink.Send(core.ProgressMessage{Type: core.MessageDone, Header: "Measurement complete", Status: "Signal strength: 70%"})

	if !strings.Contains(buf.String(), "Measurement complete\nSignal strength: 70%") {
		t.Fatalf("output = %q", buf.String())
	}
}
