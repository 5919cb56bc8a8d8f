package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"

	"wifi-survey/core"
)

// terminalSink affiche la progression d'une mesure -once dans le terminal.
type terminalSink struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newTerminalSink(out io.Writer) *terminalSink {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Measurement beginning"),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &terminalSink{out: out, bar: bar}
}

func (s *terminalSink) Send(msg core.ProgressMessage) {
	s.bar.Describe(describe(msg))
	_ = s.bar.Add(1)
	if msg.Type == core.MessageDone {
		_ = s.bar.Finish()
		fmt.Fprintf(s.out, "%s\n%s\n", msg.Header, msg.Status)
	}
}

// describe résume un message sur une ligne : en-tête puis mesures.
func describe(msg core.ProgressMessage) string {
	parts := []string{msg.Header}
	for _, line := range strings.Split(msg.Status, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " | ")
}
