package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"strings"
	"testing"

	"docsim/pkg/contract"
	"docsim/pkg/similarity"
)

type discardWriter struct{}

func (discardWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func randomDoc(r *rand.Rand, words int) string {
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa"}
	parts := make([]string, words)
	for i := range parts {
		parts[i] = vocab[r.Intn(len(vocab))]
	}
	return strings.Join(parts, " ")
}

// BenchmarkPipeline 测试完整流水线（200 个候选 × 100 条参考）的性能。
func BenchmarkPipeline(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	files := make([]memFile, 200)
	for i := range files {
		files[i] = memFile{id: fmt.Sprintf("doc-%03d.txt", i), body: randomDoc(r, 40+r.Intn(80))}
	}
	refs := make([]string, 100)
	for i := range refs {
		refs[i] = randomDoc(r, 40+r.Intn(80))
	}
	for _, c := range []int{1, runtime.NumCPU()} {
		b.Run(fmt.Sprintf("C=%d", c), func(b *testing.B) {
			comp := Components{
				Reader:     stubReader{files: files},
				Router:     stubRouter{},
				Comparator: similarity.NewComparator(similarity.Options{Workers: 1}),
				Corpus:     corpusOf(refs),
				Writer:     discardWriter{},
			}
			set := Settings{Inputs: []string{"bench"}, Concurrency: c, Threshold: th(30)}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Run(ctx, comp, set, nil); err != nil {
					b.Fatalf("运行失败: %v", err)
				}
			}
		})
	}
}

type sliceCorpus []string

func (s sliceCorpus) Load(context.Context) ([]string, error) { return s, nil }

func corpusOf(texts []string) contract.Corpus { return sliceCorpus(texts) }
