package domain

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// Planner evaluates, without mutating anything, which mutations would apply
// to a tree. This is the read-only counterpart of the pipeline used by the
// plan command; it may fan out across workers because no entry depends on
// another.
type Planner interface {
	Plan(ctx context.Context, tree m.Path, mutations []m.Mutation, threads int) ([]m.PlanEntry, error)
}

type planner struct {
	git adapter.GitAdapter
	fs  adapter.SourceFSAdapter
}

// NewPlanner constructs a Planner.
func NewPlanner(git adapter.GitAdapter, fs adapter.SourceFSAdapter) Planner {
	return &planner{git: git, fs: fs}
}

// Plan checks each mutation's applicability. Results keep the mutation list
// order regardless of worker scheduling.
func (p *planner) Plan(ctx context.Context, tree m.Path, mutations []m.Mutation, threads int) ([]m.PlanEntry, error) {
	if threads < 1 {
		threads = 1
	}

	entries := make([]m.PlanEntry, len(mutations))
	jobs := make(chan int)

	group, groupCtx := errgroup.WithContext(ctx)

	for worker := 0; worker < threads; worker++ {
		group.Go(func() error {
			for idx := range jobs {
				entry, err := p.evaluate(groupCtx, tree, mutations[idx])
				if err != nil {
					return err
				}

				entries[idx] = entry
			}

			return nil
		})
	}

	group.Go(func() error {
		defer close(jobs)

		for idx := range mutations {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case jobs <- idx:
			}
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (p *planner) evaluate(ctx context.Context, tree m.Path, mutation m.Mutation) (m.PlanEntry, error) {
	entry := m.PlanEntry{MutationID: mutation.ID, Kind: mutation.Kind}

	switch mutation.Kind {
	case m.MutationPatch:
		p.evaluatePatch(ctx, tree, mutation, &entry)
	case m.MutationSubstitution:
		if err := p.evaluateSubstitution(tree, mutation, &entry); err != nil {
			return entry, err
		}
	case m.MutationInjection:
		if err := p.evaluateInjection(tree, mutation, &entry); err != nil {
			return entry, err
		}
	default:
		return entry, fmt.Errorf("mutation %s: unknown kind %s", mutation.ID, mutation.Kind)
	}

	return entry, nil
}

func (p *planner) evaluatePatch(ctx context.Context, tree m.Path, mutation m.Mutation, entry *m.PlanEntry) {
	diff := mutation.Patch.Diff

	if err := p.git.Apply(ctx, tree, diff, adapter.ApplyOptions{Check: true, Reverse: true}); err == nil {
		entry.Reason = "already applied"
		return
	}

	if err := p.git.Apply(ctx, tree, diff, adapter.ApplyOptions{Check: true}); err == nil {
		entry.Applicable = true
		entry.Reason = "applies cleanly"

		return
	}

	entry.Applicable = true
	entry.Reason = "needs three-way merge"
}

func (p *planner) evaluateSubstitution(tree m.Path, mutation m.Mutation, entry *m.PlanEntry) error {
	sub := mutation.Substitution

	re, err := assignmentPattern(sub.LValue)
	if err != nil {
		return err
	}

	files, err := p.fs.FindFiles(tree, sub.Glob, sourceExcludeDirs)
	if err != nil {
		return err
	}

	occurrences := 0

	for _, file := range files {
		content, err := p.fs.ReadFile(file)
		if err != nil {
			return err
		}

		occurrences += len(re.FindAllIndex(content, -1))
	}

	if occurrences == 0 {
		entry.Reason = fmt.Sprintf("pattern %q absent", sub.LValue)
		return nil
	}

	entry.Applicable = true
	entry.Reason = fmt.Sprintf("%d occurrence(s)", occurrences)

	return nil
}

func (p *planner) evaluateInjection(tree m.Path, mutation m.Mutation, entry *m.PlanEntry) error {
	inj := mutation.Injection

	files, err := p.fs.FindFiles(tree, inj.Glob, sourceExcludeDirs)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		entry.Reason = fmt.Sprintf("no file named %q", inj.Glob)
		return nil
	}

	var tried []string

	for _, file := range files {
		content, err := p.fs.ReadFile(file)
		if err != nil {
			return err
		}

		if strings.Contains(string(content), mutation.Marker) {
			entry.Reason = "marker already present"
			return nil
		}

		for _, strategy := range inj.Strategies {
			if _, ok := strategy.Locate(content); !ok {
				tried = append(tried, strategy.Name)
				continue
			}

			if strategy.Terminal {
				entry.Reason = "intended anchor missing"
				return nil
			}

			entry.Applicable = true
			entry.Reason = "anchor via " + strategy.Name

			return nil
		}
	}

	entry.Reason = "no anchor matched: " + strings.Join(tried, ", ")

	return nil
}
