package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

// MboxEntry is one message of an mbox archive. Email is nil when Err is set.
type MboxEntry struct {
	Index int
	Email *ParsedEmail
	Err   error
}

// ReadMboxFile reads every message of the mbox file at path
func ReadMboxFile(path string) ([]MboxEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mbox: %w", err)
	}
	defer f.Close()

	return ReadMbox(f)
}

// ReadMbox parses each message of an mbox stream. A message that fails to
// parse is reported in its entry and does not stop the read.
func ReadMbox(r io.Reader) ([]MboxEntry, error) {
	reader := mbox.NewReader(r)

	var entries []MboxEntry
	for i := 0; ; i++ {
		msg, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("failed to read mbox message %d: %w", i, err)
		}

		parsed, err := ParseEML(msg)
		entries = append(entries, MboxEntry{Index: i, Email: parsed, Err: err})
	}
	return entries, nil
}
