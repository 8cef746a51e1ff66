package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// ReadInput returns the contents of path, or of stdin when path is empty or "-".
// Reading stdin stops when ctx is canceled.
func ReadInput(ctx context.Context, path string, stdin io.Reader) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return "", fmt.Errorf("failed to read input %s: %w", path, err)
		}
		return string(data), nil
	}

	type result struct {
		err  error
		data []byte
	}
	resultCh := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(stdin)
		resultCh <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", res.err)
		}
		return string(res.data), nil
	}
}

// Confirm asks a yes/no question and reports whether the answer was yes.
func Confirm(ctx context.Context, r io.Reader, w io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprint(w, FormatPrompt(question+" [y/N]")); err != nil {
		return false, err
	}

	answerCh := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(r).ReadString('\n')
		answerCh <- line
	}()

	select {
	case <-ctx.Done():
		return false, ErrInputCancelled
	case line := <-answerCh:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
