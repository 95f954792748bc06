package fuzzy

import (
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []struct {
		name     string
		input    string
		expected string
	}) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

func TestNormalizer_NormalizeTitle(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple title",
			input:    "Hey Jude",
			expected: "hey jude",
		},
		{
			name:     "Title with featuring",
			input:    "Song Title (feat. Artist)",
			expected: "song title",
		},
		{
			name:     "Title with remix",
			input:    "Song Title (Remix)",
			expected: "song title",
		},
		{
			name:     "Title with remaster",
			input:    "Song Title (Remastered 2009)",
			expected: "song title",
		},
		{
			name:     "Title with version suffix",
			input:    "Song Title - Radio Edit",
			expected: "song title",
		},
		{
			name:     "Version word inside the title is kept",
			input:    "Live Forever",
			expected: "live forever",
		},
		{
			name:     "Title with punctuation",
			input:    "Don't Stop Me Now!",
			expected: "don t stop me now",
		},
		{
			name:     "Everything at once",
			input:    "Hey Jude (Remastered 2009) [feat. Orchestra] - Radio Edit",
			expected: "hey jude",
		},
	}

	runStringTransformationTest(t, "NormalizeTitle", normalizer.NormalizeTitle, tests)
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()
	tests := createSimilarityTestCases()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.CalculateSimilarity(tt.s1, tt.s2)
			if abs64(result-tt.expected) > tt.delta {
				t.Errorf("CalculateSimilarity() = %f, want %f (±%f)", result, tt.expected, tt.delta)
			}
		})
	}
}

// similarityTestCase represents a test case for similarity calculation.
type similarityTestCase struct {
	name     string
	s1       string
	s2       string
	expected float64
	delta    float64
}

// createSimilarityTestCases creates all test cases for similarity calculation.
func createSimilarityTestCases() []similarityTestCase {
	return []similarityTestCase{
		{"Identical strings", "hello", "hello", 1.0, 0.0},
		{"Completely different strings", "hello", "world", 0.2, 0.1},
		{"Similar strings", "hello", "hallo", 0.8, 0.1},
		{"Empty strings", "", "", 1.0, 0.0},
		{"One empty string", "hello", "", 0.0, 0.0},
		{"Substring", "hello world", "hello", 0.45, 0.1},
		{"Multibyte runes count once", "café", "cafe", 0.75, 0.01},
	}
}

func TestNormalizer_basicNormalize(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple text",
			input:    "Hello World",
			expected: "hello world",
		},
		{
			name:     "Text with punctuation",
			input:    "Hello, World!",
			expected: "hello world",
		},
		{
			name:     "Text with accents",
			input:    "Café",
			expected: "cafe",
		},
		{
			name:     "Keeps ampersand",
			input:    "R&B",
			expected: "r&b",
		},
		{
			name:     "Text with leading/trailing spaces",
			input:    "  Hello World  ",
			expected: "hello world",
		},
	}

	runStringTransformationTest(t, "basicNormalize", normalizer.basicNormalize, tests)
}

func TestNormalizer_Rank(t *testing.T) {
	normalizer := NewNormalizer()

	candidates := []string{
		"Daft Punk Tribute Band",
		"Punk Rock Classics",
		"Daft Punk",
		"Daftside",
	}

	matches := normalizer.Rank("daft punk", candidates)
	if len(matches) != len(candidates) {
		t.Fatalf("expected %d matches, got %d", len(candidates), len(matches))
	}
	if matches[0].Index != 2 {
		t.Errorf("exact match should rank first, got %q", candidates[matches[0].Index])
	}
	if matches[1].Index != 0 {
		t.Errorf("prefix match should rank second, got %q", candidates[matches[1].Index])
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not sorted at %d: %v", i, matches)
		}
	}
}

func TestNormalizer_RankStableOnTies(t *testing.T) {
	normalizer := NewNormalizer()

	matches := normalizer.Rank("zzz", []string{"abc", "abc", "abc"})
	for i, m := range matches {
		if m.Index != i {
			t.Errorf("tie order changed: %v", matches)
			break
		}
	}
}

func TestNormalizer_ScoreEmpty(t *testing.T) {
	normalizer := NewNormalizer()

	if s := normalizer.Score("", "anything"); s != 0 {
		t.Errorf("empty query should score 0, got %f", s)
	}
	if s := normalizer.Score("!!!", "anything"); s != 0 {
		t.Errorf("punctuation-only query should score 0, got %f", s)
	}
}

func BenchmarkNormalizer_NormalizeTitle(b *testing.B) {
	normalizer := NewNormalizer()
	title := "Hey Jude (Remastered 2009) [feat. Orchestra] - Radio Edit"

	b.ResetTimer()
	for range b.N {
		normalizer.NormalizeTitle(title)
	}
}

func BenchmarkNormalizer_Rank(b *testing.B) {
	normalizer := NewNormalizer()
	candidates := []string{"Daft Punk", "Daft Punk Tribute", "Punk Rock", "Daftside", "Random Artist"}

	b.ResetTimer()
	for range b.N {
		normalizer.Rank("daft punk", candidates)
	}
}

// Helper function for floating point comparison.
func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
