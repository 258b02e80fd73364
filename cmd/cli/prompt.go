package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kurihiro0119/hitbatch/internal/config"
	"github.com/kurihiro0119/hitbatch/internal/duration"
)

// question is one interactive prompt; a value supplied by flag skips it when valid
type question struct {
	name     string
	message  string
	validate func(string) error
}

// prompter reads answers line by line, asking again after invalid input
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// readLine returns the next trimmed line; io.EOF only when nothing was read
func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) ask(q question) (string, error) {
	for {
		fmt.Fprintln(p.out, q.message)
		answer, err := p.readLine()
		if err != nil {
			return "", fmt.Errorf("no answer for %s: %w", q.name, err)
		}
		if q.validate == nil {
			return answer, nil
		}
		if err := q.validate(answer); err != nil {
			fmt.Fprintf(p.out, "Error: %v\n", err)
			continue
		}
		return answer, nil
	}
}

// answer returns preset when it validates, otherwise asks
func (p *prompter) answer(q question, preset string) (string, error) {
	if preset != "" && (q.validate == nil || q.validate(preset) == nil) {
		return preset, nil
	}
	return p.ask(q)
}

func nonEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("answer must not be empty")
	}
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("answer must be a positive whole number")
	}
	return nil
}

func validDuration(s string) error {
	_, err := duration.Parse(s)
	return err
}

func validURL(s string) error {
	_, err := config.NormalizeURL(s)
	return err
}

func validReward(s string) error {
	_, err := config.ParseReward(s)
	return err
}

func validMode(s string) error {
	if _, ok := parseMode(s); !ok {
		return fmt.Errorf("type b for batch or s for single")
	}
	return nil
}

// parseMode accepts any prefix of "batch" or "single"
func parseMode(s string) (batch bool, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return false, false
	case strings.HasPrefix("batch", s):
		return true, true
	case strings.HasPrefix("single", s):
		return false, true
	}
	return false, false
}
