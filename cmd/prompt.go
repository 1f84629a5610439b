package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// codePrompt reads passcodes typed on the command's input.
type codePrompt struct {
	cmd     *cobra.Command
	scanner *bufio.Scanner
}

func newCodePrompt(cmd *cobra.Command) *codePrompt {
	return &codePrompt{cmd: cmd, scanner: bufio.NewScanner(cmd.InOrStdin())}
}

// Next asks for a code. It fails with io.EOF when the input is closed.
func (p *codePrompt) Next() (string, error) {
	fmt.Fprint(p.cmd.OutOrStdout(), "Enter code: ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	code := strings.TrimSpace(p.scanner.Text())
	if code == "" {
		return "", errors.New("empty code")
	}
	return code, nil
}
