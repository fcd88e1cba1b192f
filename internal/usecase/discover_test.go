package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfaudit/internal/adapter/chunker"
	"perfaudit/internal/domain"
	"perfaudit/internal/prompt"
)

type fakeSearcher struct {
	indexed []domain.Chunk
	query   string
	k       int
}

func (f *fakeSearcher) Index(ctx context.Context, chunks []domain.Chunk) error {
	f.indexed = append(f.indexed, chunks...)
	return nil
}

func (f *fakeSearcher) Search(ctx context.Context, docID, query string, k int) ([]domain.Passage, error) {
	f.query, f.k = query, k
	var out []domain.Passage
	for i := len(f.indexed) - 1; i >= 0 && len(out) < k; i-- {
		if f.indexed[i].DocID == docID {
			out = append(out, domain.Passage{Chunk: f.indexed[i], Score: float64(i)})
		}
	}
	return out, nil
}

func TestDiscoverer_ProposesCandidates(t *testing.T) {
	eng := readyEngagement("one two three four five six seven eight nine ten eleven twelve", "report")
	searcher := &fakeSearcher{}
	var sent string
	sender := sendFunc(func(ctx context.Context, p string) (string, error) {
		sent = p
		return "Here are the programmes:\nProgramme 1: Administration\nProgramme 2: Health Services\nProgramme 1: Administration\n", nil
	})
	d := NewDiscoverer(searcher, nil, chunker.NewWordChunker(5), sender, prompt.MustLoad(), DiscoverOptions{}, nil)

	names, err := d.Discover(context.Background(), eng)

	require.NoError(t, err)
	assert.Equal(t, []string{"Programme 1: Administration", "Programme 2: Health Services"}, names)
	assert.Equal(t, names, eng.Candidates())
	assert.Empty(t, eng.Programmes(), "discovery does not change the scope")

	assert.Len(t, searcher.indexed, 3)
	assert.Equal(t, "List all key Programmes", searcher.query)
	assert.Equal(t, 9, searcher.k)
	assert.Contains(t, sent, "eleven twelve")
}

func TestDiscoverer_RerankerLimitsPassages(t *testing.T) {
	eng := readyEngagement("a b c d e f g h i j k l m n o p", "report")
	var sent string
	sender := sendFunc(func(ctx context.Context, p string) (string, error) {
		sent = p
		return "Programme 1", nil
	})
	reranker := rerankFunc(func(c []domain.Passage, k int) []domain.Passage { return c[len(c)-1:] })
	d := NewDiscoverer(&fakeSearcher{}, reranker, chunker.NewWordChunker(2), sender, prompt.MustLoad(), DiscoverOptions{TopK: 2}, nil)

	_, err := d.Discover(context.Background(), eng)

	require.NoError(t, err)
	assert.Contains(t, sent, "Passage 1")
	assert.NotContains(t, sent, "Passage 2")
}

type rerankFunc func([]domain.Passage, int) []domain.Passage

func (f rerankFunc) Rerank(c []domain.Passage, k int) []domain.Passage { return f(c, k) }

func TestDiscoverer_NeedsPlan(t *testing.T) {
	d := NewDiscoverer(&fakeSearcher{}, nil, chunker.NewWordChunker(5), sendFunc(func(context.Context, string) (string, error) {
		return "", nil
	}), prompt.MustLoad(), DiscoverOptions{}, nil)

	_, err := d.Discover(context.Background(), NewEngagement("u"))
	assert.ErrorIs(t, err, domain.ErrMissingPrerequisite)
}

func TestParseProgrammes(t *testing.T) {
	reply := "Programme 1: Administration\n" +
		"- Programme 2: Education\n" +
		"**Programme 3: Health**\n" +
		"Programmes are listed below\n" +
		"Sub-programme 1.1\n" +
		"  programme 4: roads  \n" +
		"Programme 1: Administration\n"

	assert.Equal(t, []string{
		"Programme 1: Administration",
		"Programme 2: Education",
		"Programme 3: Health",
		"programme 4: roads",
	}, ParseProgrammes(reply))
	assert.Empty(t, ParseProgrammes("nothing here"))
}
