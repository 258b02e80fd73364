package qual

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Step tells the prompt loop what to do after a line was handled
type Step int

const (
	// StepContinue asks for the next line
	StepContinue Step = iota
	// StepRetry asks again after a recoverable error was reported
	StepRetry
	// StepDone ends the session
	StepDone
)

// Session holds the formulae accepted so far during interactive entry
type Session struct {
	compiler  *Compiler
	loader    *Loader
	out       io.Writer
	reqs      []domain.QualificationRequirement
	responses []string
}

// NewSession creates an interactive entry session writing feedback to out
func NewSession(compiler *Compiler, out io.Writer) *Session {
	return &Session{compiler: compiler, loader: NewLoader(compiler), out: out}
}

// Requirements returns the accepted requirements in entry order
func (s *Session) Requirements() []domain.QualificationRequirement {
	return s.reqs
}

// Formulae returns the accepted formula lines in entry order
func (s *Session) Formulae() []string {
	return s.responses
}

// Prompt returns the text to show before reading the next line
func (s *Session) Prompt() string {
	if len(s.reqs) == 0 {
		return "Enter qualification formula\n(type 'help' for reminders on syntax, 'list' to see current formulae, " +
			"'done' to finish qualifications, or 'load <filename>' to read qualifications from a file on disk.)"
	}
	return "Enter next formula (or 'help', 'list', 'load <filename>', or 'done')"
}

// Handle processes one line of operator input
func (s *Session) Handle(ctx context.Context, line string) Step {
	line = strings.TrimSpace(line)
	switch {
	case line == "help":
		s.help()
		return StepContinue
	case line == "list":
		s.list()
		return StepContinue
	case line == "done":
		return StepDone
	case line == "load" || strings.HasPrefix(line, "load "):
		s.load(ctx, strings.TrimSpace(strings.TrimPrefix(line, "load")))
		return StepRetry
	}

	req, err := s.compiler.Compile(line)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return StepRetry
	}
	s.accept(*req, line)
	fmt.Fprintf(s.out, "Added %s qualification\n\n", req.Name)
	return StepContinue
}

func (s *Session) accept(req domain.QualificationRequirement, line string) {
	s.compiler.Learn(req.Name)
	s.reqs = append(s.reqs, req)
	s.responses = append(s.responses, line)
}

func (s *Session) load(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(s.out, "Error: load needs a file name")
		return
	}
	reqs, lines, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		fmt.Fprintln(s.out, "Error loading from file:")
		fmt.Fprintln(s.out, err.Error())
		return
	}
	for i := range reqs {
		s.accept(reqs[i], lines[i])
	}
	fmt.Fprintf(s.out, "Added qualifications from %s:\n%s\n", path, strings.Join(lines, "\n"))
}

func (s *Session) list() {
	if len(s.responses) == 0 {
		fmt.Fprintln(s.out, "No qualifications entered")
		fmt.Fprintln(s.out)
		return
	}
	fmt.Fprintln(s.out, "Qualifications entered so far:")
	for i, resp := range s.responses {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, resp)
	}
	fmt.Fprintln(s.out)
}

func (s *Session) help() {
	fmt.Fprintln(s.out, "The syntax for a qualification formula is:")
	fmt.Fprintln(s.out, "<NAME> <COMPARATOR> <VALUE>")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Names provided by MTurk are:")
	for _, name := range domain.SystemQualificationNames {
		fmt.Fprintln(s.out, " "+name)
	}
	fmt.Fprintln(s.out, "You can also use the name of a premium qualification or a custom qualification you have created")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Comparators are:")
	for _, c := range Comparators {
		fmt.Fprintln(s.out, " "+c)
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Value can be:")
	fmt.Fprintln(s.out, " a single integer: 5")
	fmt.Fprintln(s.out, " a list of integers: 5, 7, 23, 8")
	fmt.Fprintln(s.out, " a single location (ISO 3166 country code with optional ISO 3166-2 subdivision): USA:NY")
	fmt.Fprintln(s.out, " a list of locations: USA:NY, MEX, CAN")
	fmt.Fprintln(s.out)
}
