package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts/schemas"
	"github.com/Mindburn-Labs/turnkernel/pkg/kernel"
)

// runValidateCmd implements `turnkernel validate`: schema and structural
// checks only, with no store or kernel involved.
func runValidateCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	inPath := cmd.String("in", "-", "JSON Lines turn file, - for stdin")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	in, closeIn, err := openInput(*inPath, stdin)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeIn()

	invalid := 0
	err = eachLine(in, func(n int, line []byte) error {
		verr := validateTurn(line)
		var es contracts.ValidationErrors
		switch {
		case verr == nil:
			_, _ = fmt.Fprintf(stdout, "line %d: ok\n", n)
			return nil
		case errors.As(verr, &es):
			invalid++
			for _, e := range es {
				_, _ = fmt.Fprintf(stdout, "line %d: %s\n", n, e.Error())
			}
			return nil
		default:
			return verr
		}
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if invalid > 0 {
		return 1
	}
	return 0
}

func validateTurn(line []byte) error {
	if err := schemas.ValidateTurn(line); err != nil {
		return err
	}
	var t kernel.Turn
	if err := json.Unmarshal(line, &t); err != nil {
		return contracts.ValidationErrors{{Field: "/", Code: contracts.CodeInvalidValue, Message: err.Error()}}
	}
	var v contracts.Validator
	if t.Envelope != (contracts.Envelope{}) {
		v.Merge("envelope", t.Envelope.Validate())
	}
	v.Merge("", t.Validate())
	return v.Err()
}
