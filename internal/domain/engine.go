package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// sourceExcludeDirs are directory names never scanned for mutation targets.
var sourceExcludeDirs = []string{".git", "tests", "demos", "include"}

// Engine performs the programmatic source edits: capability-flag
// substitutions and structural code injection at a located anchor.
//
// Engine-level faults (I/O, malformed template) abort the run. "Pattern not
// found" and "no anchor matched" are expected when the upstream has drifted
// and come back as skipped results, never as errors.
type Engine interface {
	Apply(ctx context.Context, tree m.Path, mutations []m.Mutation) (*m.MutationReport, error)
}

type engine struct {
	fs adapter.SourceFSAdapter
}

// NewEngine constructs the injection engine on top of the filesystem adapter.
func NewEngine(fs adapter.SourceFSAdapter) Engine {
	return &engine{fs: fs}
}

func (e *engine) Apply(ctx context.Context, tree m.Path, mutations []m.Mutation) (*m.MutationReport, error) {
	report := &m.MutationReport{}

	for _, mutation := range mutations {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var (
			result m.MutationResult
			err    error
		)

		switch mutation.Kind {
		case m.MutationSubstitution:
			result, err = e.substitute(tree, mutation)
		case m.MutationInjection:
			result, err = e.inject(tree, mutation)
		default:
			err = fmt.Errorf("mutation %s: kind %s is not handled by the engine", mutation.ID, mutation.Kind)
		}

		if err != nil {
			return report, err
		}

		report.Add(result)

		if result.Outcome == m.OutcomeFailed && mutation.Required {
			return report, &m.InjectionEngineError{
				MutationID: mutation.ID,
				Err:        fmt.Errorf("required mutation failed: %s", result.Detail),
			}
		}
	}

	return report, nil
}

// substitute rewrites `<lvalue> = <anything>;` to `<lvalue> = <value>;` in
// every file matching the glob. Absence of the pattern means the mutation
// does not apply to this upstream version: skipped, never failed.
func (e *engine) substitute(tree m.Path, mutation m.Mutation) (m.MutationResult, error) {
	sub := mutation.Substitution
	result := m.MutationResult{
		MutationID: mutation.ID,
		Kind:       m.MutationSubstitution,
		Required:   mutation.Required,
	}

	re, err := assignmentPattern(sub.LValue)
	if err != nil {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
	}

	files, err := e.fs.FindFiles(tree, sub.Glob, sourceExcludeDirs)
	if err != nil {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
	}

	replacement := sub.LValue + " = " + sub.Value + ";"

	matched, rewritten := 0, 0

	for _, file := range files {
		content, err := e.fs.ReadFile(file)
		if err != nil {
			return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
		}

		text := string(content)

		locs := re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}

		matched += len(locs)

		var mutated string
		if sub.Multiplicity == m.ReplaceOne {
			// First occurrence only; the canonical site.
			mutated = text[:locs[0][0]] + replacement + text[locs[0][1]:]
		} else {
			mutated = re.ReplaceAllLiteralString(text, replacement)
		}

		if mutated != text {
			if err := e.fs.WriteFile(file, []byte(mutated), 0o644); err != nil {
				return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
			}

			if sub.Multiplicity == m.ReplaceOne {
				rewritten++
			} else {
				rewritten += len(locs)
			}

			logMutationDiff(mutation.ID, string(file), text, mutated)
		}

		if sub.Multiplicity == m.ReplaceOne {
			break
		}
	}

	switch {
	case matched == 0:
		result.Outcome = m.OutcomeSkipped
		result.Detail = fmt.Sprintf("pattern %q not present in %d candidate file(s)", sub.LValue, len(files))

		slog.Info("substitution does not apply to this version", "mutation", mutation.ID, "lvalue", sub.LValue)
	case rewritten == 0:
		result.Outcome = m.OutcomeAlreadyApplied
		result.Detail = fmt.Sprintf("%d occurrence(s) already at target value", matched)
	default:
		result.Outcome = m.OutcomeApplied
		result.Detail = fmt.Sprintf("%d occurrence(s) rewritten", rewritten)
	}

	return result, nil
}

// inject locates an anchor via the strategy cascade and inserts the rendered
// block exactly once.
func (e *engine) inject(tree m.Path, mutation m.Mutation) (m.MutationResult, error) {
	inj := mutation.Injection
	result := m.MutationResult{
		MutationID: mutation.ID,
		Kind:       m.MutationInjection,
		Required:   mutation.Required,
	}

	if mutation.Marker == "" {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: fmt.Errorf("injection has no marker")}
	}

	files, err := e.fs.FindFiles(tree, inj.Glob, sourceExcludeDirs)
	if err != nil {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
	}

	if len(files) == 0 {
		result.Outcome = m.OutcomeSkipped
		result.Detail = fmt.Sprintf("no file named %q in tree", inj.Glob)

		return result, nil
	}

	var tried []string

	for _, file := range files {
		content, err := e.fs.ReadFile(file)
		if err != nil {
			return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
		}

		// Marker pre-check: at-most-once effect across runs.
		if strings.Contains(string(content), mutation.Marker) {
			result.Outcome = m.OutcomeAlreadyApplied
			result.Detail = fmt.Sprintf("marker present in %s", file)

			return result, nil
		}

		for _, strategy := range inj.Strategies {
			anchor, ok := strategy.Locate(content)
			if !ok {
				tried = append(tried, strategy.Name)
				continue
			}

			if strategy.Terminal {
				// The fallback anchor only proves this is the right
				// file; injecting anywhere else would be wrong code.
				result.Outcome = m.OutcomeSkipped
				result.Strategy = strategy.Name
				result.Detail = fmt.Sprintf("intended anchor missing in %s; tried %s", file, strings.Join(tried, ", "))

				slog.Warn("injection anchor unavailable", "mutation", mutation.ID, "file", file, "tried", tried)

				return result, nil
			}

			return e.insertBlock(mutation, file, content, anchor, strategy.Name)
		}
	}

	result.Outcome = m.OutcomeSkipped
	result.Detail = fmt.Sprintf("no anchor matched; tried %s", strings.Join(tried, ", "))

	slog.Warn("no anchor strategy matched", "mutation", mutation.ID, "tried", tried)

	return result, nil
}

func (e *engine) insertBlock(mutation m.Mutation, file m.Path, content []byte, anchor m.Anchor, strategyName string) (m.MutationResult, error) {
	result := m.MutationResult{
		MutationID: mutation.ID,
		Kind:       m.MutationInjection,
		Required:   mutation.Required,
		Strategy:   strategyName,
	}

	block, err := mutation.Injection.Block(anchor.Captures)
	if err != nil {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: fmt.Errorf("render block: %w", err)}
	}

	if !strings.Contains(block, mutation.Marker) {
		return result, &m.InjectionEngineError{
			MutationID: mutation.ID,
			Err:        fmt.Errorf("rendered block does not embed marker %q", mutation.Marker),
		}
	}

	text := string(content)
	mutated := text[:anchor.Offset] + block + text[anchor.Offset:]

	if err := e.fs.WriteFile(file, []byte(mutated), 0o644); err != nil {
		return result, &m.InjectionEngineError{MutationID: mutation.ID, Err: err}
	}

	result.Outcome = m.OutcomeApplied
	result.Detail = fmt.Sprintf("injected into %s at offset %d", file, anchor.Offset)

	slog.Info("block injected", "mutation", mutation.ID, "file", file, "strategy", strategyName)
	logMutationDiff(mutation.ID, string(file), text, mutated)

	return result, nil
}

// assignmentPattern compiles `<lvalue> = <anything>;` with the lvalue quoted
// literally and bounded so `options1.WaveOps` never matches a longer name.
func assignmentPattern(lvalue string) (*regexp.Regexp, error) {
	if strings.TrimSpace(lvalue) == "" {
		return nil, fmt.Errorf("empty lvalue")
	}

	return regexp.Compile(`\b` + regexp.QuoteMeta(lvalue) + `\s*=\s*[^;\n]+;`)
}

// logMutationDiff records a unified diff of the edit at debug level.
func logMutationDiff(mutationID, file, before, after string) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: file,
		ToFile:   file,
		Context:  2,
	})
	if err != nil {
		return
	}

	slog.Debug("mutation diff", "mutation", mutationID, "diff", diff)
}
