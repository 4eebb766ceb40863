// SPDX-License-Identifier: MPL-2.0

package subst

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"kmake-cli/pkg/workspace"
)

// InputCacheFile is the input cache file name, stored in the project directory.
const InputCacheFile = ".input.cache"

type (
	// Prompter asks the user for the value of an input variable.
	// cached is the previous value, or "" if there is none.
	Prompter interface {
		Prompt(ctx context.Context, name, cached string) (string, error)
	}

	// LinePrompter reads one line per input from In.
	LinePrompter struct {
		In  io.Reader
		Out io.Writer

		reader *bufio.Reader
	}

	// InputPass resolves the names listed under inputs and substitutes ${NAME}.
	InputPass struct {
		Prompter Prompter
		// CachePath is the input cache file. Empty disables persistence.
		CachePath string
		// UseCache skips prompting and uses cached values only.
		UseCache bool
		Logger   *log.Logger
	}
)

//nolint:gochecknoglobals // style
var (
	promptNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	promptCachedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// NewLinePrompter creates a LinePrompter.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{In: in, Out: out}
}

// Prompt implements Prompter.
func (p *LinePrompter) Prompt(ctx context.Context, name, cached string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	label := promptNameStyle.Render(name)
	if cached != "" {
		label += " " + promptCachedStyle.Render("("+cached+")")
	}
	fmt.Fprint(p.Out, label+": ")

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (*InputPass) Name() string { return "inputs" }

// Apply implements Pass.
func (p *InputPass) Apply(ctx context.Context, tree workspace.Tree) (workspace.Tree, error) {
	names := inputNames(tree)
	if len(names) == 0 {
		return tree, nil
	}

	logger := p.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cache, err := LoadInputCache(p.CachePath)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(names))
	for _, name := range names {
		cached, hasCached := cache[name]

		if p.UseCache {
			if hasCached {
				values[name] = cached
			}
			logger.Info("input", "name", name, "value", cached, "cached", true)
			continue
		}

		if p.Prompter == nil {
			return nil, fmt.Errorf("input %q: no prompter available", name)
		}
		value, err := p.Prompter.Prompt(ctx, name, cached)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		if value == "" && hasCached {
			value = cached
		}
		if value != "" {
			values[name] = value
			cache[name] = value
		}
		logger.Debug("input", "name", name, "value", value)
	}

	if err := SaveInputCache(p.CachePath, cache); err != nil {
		return nil, err
	}

	return Substitute(tree, Syntax{}, MapLookup(values)).(workspace.Tree), nil
}

func inputNames(tree workspace.Tree) []string {
	raw, _ := tree[workspace.KeyInputs].([]any)
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			names = append(names, s)
		}
	}
	return names
}

// LoadInputCache reads the input cache. A missing file yields an empty cache.
func LoadInputCache(path string) (map[string]string, error) {
	cache := map[string]string{}
	if path == "" {
		return cache, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input cache: %w", err)
	}
	if err := yaml.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse input cache %s: %w", path, err)
	}
	if cache == nil {
		cache = map[string]string{}
	}
	return cache, nil
}

// SaveInputCache writes the input cache. An empty path is a no-op.
func SaveInputCache(path string, cache map[string]string) error {
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encode input cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write input cache: %w", err)
	}
	return nil
}
