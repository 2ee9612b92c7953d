package inline

import (
	"context"
	"fmt"

	"docsim/pkg/contract"
)

// Options: 直接在配置中给出的参考文本。
type Options struct {
	Texts []string `json:"texts"`
	// Names: 可选，与 Texts 一一对应。
	Names []string `json:"names,omitempty"`
}

type Corpus struct {
	texts []string
	names []string
}

func New(opts *Options) (*Corpus, error) {
	if opts == nil {
		return &Corpus{texts: []string{}}, nil
	}
	if len(opts.Names) > 0 && len(opts.Names) != len(opts.Texts) {
		return nil, fmt.Errorf("corpus inline: names/texts length mismatch: %w", contract.ErrInvalidInput)
	}
	c := &Corpus{texts: append([]string{}, opts.Texts...), names: append([]string(nil), opts.Names...)}
	return c, nil
}

var _ contract.NamedCorpus = (*Corpus)(nil)

func (c *Corpus) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, c.texts...), nil
}

func (c *Corpus) Names() []string {
	if len(c.names) > 0 {
		return append([]string(nil), c.names...)
	}
	out := make([]string, len(c.texts))
	for i := range out {
		out[i] = fmt.Sprintf("inline[%d]", i)
	}
	return out
}
