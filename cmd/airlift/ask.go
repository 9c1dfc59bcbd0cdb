// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
)

// asker queries the operator about configuration interactively at the
// command prompt.
type asker struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newAsker(ctx *cmd.Context) *asker {
	return &asker{scanner: bufio.NewScanner(ctx.Stdin), out: ctx.Stdout}
}

// ask prints the prompt and returns the operator's answer, or def when the
// answer is empty.
func (a *asker) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(a.out, "%s: ", prompt)
	}
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return "", errors.Trace(err)
		}
		return "", errors.New("input stream closed")
	}
	answer := strings.TrimSpace(a.scanner.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (a *asker) askInt(prompt string, def int) (int, error) {
	answer, err := a.ask(prompt, strconv.Itoa(def))
	if err != nil {
		return 0, errors.Trace(err)
	}
	value, err := strconv.Atoi(answer)
	if err != nil {
		return 0, errors.NotValidf("%q", answer)
	}
	return value, nil
}

// confirm asks a yes/no question, re-prompting until it gets one.
func (a *asker) confirm(prompt string) (bool, error) {
	for {
		answer, err := a.ask(prompt+" (y/n)", "")
		if err != nil {
			return false, errors.Trace(err)
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(a.out, "Please answer y or n.")
	}
}
