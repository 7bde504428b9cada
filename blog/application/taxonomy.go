package application

import (
	"context"
	"fmt"
	"slices"

	"github.com/dfryer1193/gistblog/blog/domain"
)

// termKind selects the category or tag fields of the document.
type termKind struct {
	label string
	list  func(info *domain.BlogInfo) *[]string
	terms func(p *domain.Post) *[]string
}

var (
	categories = termKind{
		label: "category",
		list:  func(info *domain.BlogInfo) *[]string { return &info.Categories },
		terms: func(p *domain.Post) *[]string { return &p.Categories },
	}
	tags = termKind{
		label: "tag",
		list:  func(info *domain.BlogInfo) *[]string { return &info.Tags },
		terms: func(p *domain.Post) *[]string { return &p.Tags },
	}
)

func (s *BlogStore) Categories(ctx context.Context) []string { return s.terms(ctx, categories) }
func (s *BlogStore) Tags(ctx context.Context) []string       { return s.terms(ctx, tags) }

func (s *BlogStore) AddCategory(ctx context.Context, name string) (string, error) {
	return s.addTerm(ctx, categories, name)
}

func (s *BlogStore) RenameCategory(ctx context.Context, from, to string) (string, error) {
	return s.renameTerm(ctx, categories, from, to)
}

func (s *BlogStore) DeleteCategory(ctx context.Context, name string) error {
	return s.deleteTerm(ctx, categories, name)
}

func (s *BlogStore) AddTag(ctx context.Context, name string) (string, error) {
	return s.addTerm(ctx, tags, name)
}

func (s *BlogStore) RenameTag(ctx context.Context, from, to string) (string, error) {
	return s.renameTerm(ctx, tags, from, to)
}

func (s *BlogStore) DeleteTag(ctx context.Context, name string) error {
	return s.deleteTerm(ctx, tags, name)
}

// terms is the stored list followed by any names posts reference that the list lacks.
func (s *BlogStore) terms(ctx context.Context, kind termKind) []string {
	data := s.snapshot(ctx)
	info := data.BlogInfo
	out := slices.Clone(*kind.list(&info))
	if out == nil {
		out = []string{}
	}
	for i := range data.Posts {
		p := data.Posts[i]
		out = unionTerms(out, *kind.terms(&p))
	}
	return out
}

func knownTerm(d *domain.BlogData, kind termKind, name string) bool {
	if slices.Contains(*kind.list(&d.BlogInfo), name) {
		return true
	}
	for i := range d.Posts {
		if slices.Contains(*kind.terms(&d.Posts[i]), name) {
			return true
		}
	}
	return false
}

// resolveTerm finds the stored spelling of name, trying it verbatim and then normalized.
func resolveTerm(d *domain.BlogData, kind termKind, name string) (string, error) {
	if knownTerm(d, kind, name) {
		return name, nil
	}
	if normalized := domain.NormalizeTerm(name); normalized != "" && knownTerm(d, kind, normalized) {
		return normalized, nil
	}
	return "", fmt.Errorf("%s %q: %w", kind.label, name, domain.ErrTermNotFound)
}

func (s *BlogStore) addTerm(ctx context.Context, kind termKind, name string) (string, error) {
	term := domain.NormalizeTerm(name)
	if term == "" {
		return "", fmt.Errorf("%w: %s name is required", domain.ErrValidation, kind.label)
	}

	err := s.mutate(ctx, func(d *domain.BlogData) error {
		list := kind.list(&d.BlogInfo)
		if slices.Contains(*list, term) {
			return errNoChange
		}
		*list = append(*list, term)
		return nil
	})
	return term, err
}

// renameTerm replaces from with the normalized to in the list and in every post.
func (s *BlogStore) renameTerm(ctx context.Context, kind termKind, from, to string) (string, error) {
	term := domain.NormalizeTerm(to)
	if term == "" {
		return "", fmt.Errorf("%w: new %s name is required", domain.ErrValidation, kind.label)
	}

	err := s.mutate(ctx, func(d *domain.BlogData) error {
		from, err := resolveTerm(d, kind, from)
		if err != nil {
			return err
		}
		if from == term {
			return errNoChange
		}

		list := kind.list(&d.BlogInfo)
		*list = replaceTerm(*list, from, term)
		for i := range d.Posts {
			terms := kind.terms(&d.Posts[i])
			*terms = replaceTerm(*terms, from, term)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return term, nil
}

// deleteTerm removes name from the list and strips it from every post.
func (s *BlogStore) deleteTerm(ctx context.Context, kind termKind, name string) error {
	return s.mutate(ctx, func(d *domain.BlogData) error {
		name, err := resolveTerm(d, kind, name)
		if err != nil {
			return err
		}

		drop := func(t string) bool { return t == name }
		list := kind.list(&d.BlogInfo)
		*list = slices.DeleteFunc(*list, drop)
		for i := range d.Posts {
			terms := kind.terms(&d.Posts[i])
			*terms = slices.DeleteFunc(*terms, drop)
		}
		return nil
	})
}

// replaceTerm swaps from for to in place, dropping to if it was already present.
func replaceTerm(list []string, from, to string) []string {
	idx := slices.Index(list, from)
	if idx < 0 {
		return list
	}
	if slices.Contains(list, to) {
		return slices.Delete(list, idx, idx+1)
	}
	list[idx] = to
	return list
}

// normalizeTerms normalizes names, dropping blanks and duplicates while keeping order.
func normalizeTerms(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if t := domain.NormalizeTerm(n); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// unionTerms appends the names of extra missing from base.
func unionTerms(base, extra []string) []string {
	for _, t := range extra {
		if !slices.Contains(base, t) {
			base = append(base, t)
		}
	}
	return base
}
