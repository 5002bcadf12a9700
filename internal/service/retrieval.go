package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
)

const (
	lexicalPrefilterCap  = 400
	minLexicalCandidates = 30
	genericPoolCap       = 100
	deepScanCap          = 1500
	rescanCap            = 100
	rescoreMergeTop      = 15
)

// synonymTable expands query tokens with domain terms so lexical
// prefiltering survives wording differences.
var synonymTable = map[string][]string{
	"start":     {"begin", "open", "commence"},
	"begin":     {"start", "open", "commence"},
	"cost":      {"tuition", "fee", "price"},
	"tuition":   {"cost", "fee"},
	"apply":     {"application", "admission", "admissions", "enroll"},
	"admission": {"apply", "application", "enroll"},
	"class":     {"course", "courses", "curriculum"},
	"course":    {"class", "classes", "curriculum"},
	"schedule":  {"calendar", "dates", "timetable"},
	"calendar":  {"schedule", "dates"},
	"semester":  {"term", "session"},
	"exam":      {"examination", "test", "final"},
	"professor": {"faculty", "instructor"},
	"faculty":   {"professor", "instructor"},
	"deadline":  {"due", "date"},
	"job":       {"career", "employment", "placement"},
	"housing":   {"residence", "dorm", "living"},
}

// genericKeywordPool pads thin candidate sets with broadly relevant pages.
var genericKeywordPool = []string{
	"law", "school", "student", "program", "degree",
	"academic", "admission", "course", "faculty", "temple",
}

// topicSteering force-includes chunks from known sections when the query
// contains specific trigger phrases.
var topicSteering = []struct {
	trigger *regexp.Regexp
	pattern string
}{
	{regexp.MustCompile(`(?i)semester|academic calendar|first day|last day|spring break|registration date`), "calendar"},
	{regexp.MustCompile(`(?i)tuition|financial aid|scholarship|cost of attendance`), "tuition"},
	{regexp.MustCompile(`(?i)apply|admission|lsat|application`), "admission"},
	{regexp.MustCompile(`(?i)bar exam|bar passage`), "bar"},
}

var reToken = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases the query and keeps deduplicated alphanumeric tokens
// of three or more characters, in first-seen order.
func Tokenize(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, token := range reToken.FindAllString(strings.ToLower(query), -1) {
		if len(token) < 3 || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// ExpandTokens unions the token set with its synonym expansions.
func ExpandTokens(tokens []string) []string {
	seen := make(map[string]bool)
	var expanded []string
	add := func(token string) {
		if !seen[token] {
			seen[token] = true
			expanded = append(expanded, token)
		}
	}
	for _, token := range tokens {
		add(token)
		for _, synonym := range synonymTable[token] {
			add(synonym)
		}
	}
	return expanded
}

// scoredChunk pairs a candidate with its similarity against the query.
type scoredChunk struct {
	chunk models.Chunk
	score float64
}

// rankBySimilarity scores candidates against the query embedding and sorts
// descending. A nil embedding or a dimension mismatch scores zero rather
// than dropping the candidate.
func rankBySimilarity(candidates []models.Chunk, queryEmbedding []float32) []scoredChunk {
	scored := make([]scoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		var score float64
		if len(queryEmbedding) > 0 {
			if s, err := llm.Cosine(queryEmbedding, chunk.Embedding); err == nil {
				score = s
			}
		}
		scored = append(scored, scoredChunk{chunk: chunk, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].chunk.URL != scored[j].chunk.URL {
			return scored[i].chunk.URL < scored[j].chunk.URL
		}
		return scored[i].chunk.Index < scored[j].chunk.Index
	})

	return scored
}

// mergeScored folds additions into ranked, deduplicating by chunk id, and
// re-sorts.
func mergeScored(ranked, additions []scoredChunk) []scoredChunk {
	present := make(map[string]bool, len(ranked))
	for _, sc := range ranked {
		present[sc.chunk.ID.String()] = true
	}
	for _, sc := range additions {
		if present[sc.chunk.ID.String()] {
			continue
		}
		present[sc.chunk.ID.String()] = true
		ranked = append(ranked, sc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	return ranked
}

func unionChunks(base, extra []models.Chunk) []models.Chunk {
	present := make(map[string]bool, len(base))
	for _, chunk := range base {
		present[chunk.ID.String()] = true
	}
	for _, chunk := range extra {
		if present[chunk.ID.String()] {
			continue
		}
		present[chunk.ID.String()] = true
		base = append(base, chunk)
	}
	return base
}

// buildContext renders selected chunks as a numbered source block for the
// generation prompt.
func buildContext(selected []scoredChunk) string {
	var builder strings.Builder
	for i, sc := range selected {
		builder.WriteString(fmt.Sprintf("[%d] Source: %s\n%s\n\n", i+1, sc.chunk.URL, sc.chunk.Text))
	}
	return builder.String()
}

// sourceURLs lists the distinct page URLs of the selection in rank order.
func sourceURLs(selected []scoredChunk) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, sc := range selected {
		if seen[sc.chunk.URL] {
			continue
		}
		seen[sc.chunk.URL] = true
		sources = append(sources, sc.chunk.URL)
	}
	return sources
}
