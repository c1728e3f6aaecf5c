package release

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const promptClosedMessageConstant = "prompt input closed"

// ErrPromptClosed indicates the prompt input ended before an answer was read.
var ErrPromptClosed = errors.New(promptClosedMessageConstant)

// Prompter asks an operator for free-form input.
type Prompter interface {
	Ask(prompt string) (string, error)
}

// IOPrompter reads answers from an io.Reader.
type IOPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewIOPrompter constructs a prompter from the provided reader and writer.
func NewIOPrompter(input io.Reader, output io.Writer) *IOPrompter {
	return &IOPrompter{reader: bufio.NewReader(input), writer: output}
}

// Ask writes the prompt and returns the trimmed answer.
func (prompter *IOPrompter) Ask(prompt string) (string, error) {
	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return "", writeError
		}
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil && readError != io.EOF {
		return "", readError
	}
	if readError == io.EOF && len(response) == 0 {
		return "", ErrPromptClosed
	}
	return strings.TrimSpace(response), nil
}
