package hashtags

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Source holds the candidate hashtags loaded from a line-oriented text file.
// Only lines starting with '#' are kept.
type Source struct {
	tags []string

	// shuffle permutes indices; replaced in tests for determinism.
	shuffle func(n int, swap func(i, j int))
}

// Load reads the hashtag file. A missing file yields an empty source rather
// than an error, matching the collaborator contract: hashtags are optional
// caption garnish.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Source{shuffle: rand.Shuffle}, nil
		}
		return nil, fmt.Errorf("failed to open hashtags file %s: %w", path, err)
	}
	defer f.Close()

	var tags []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			tags = append(tags, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hashtags file %s: %w", path, err)
	}

	return &Source{tags: tags, shuffle: rand.Shuffle}, nil
}

// Len returns the number of loaded hashtags.
func (s *Source) Len() int { return len(s.tags) }

// Sample returns up to n distinct hashtags joined by spaces, chosen at
// random. An empty source yields an empty string.
func (s *Source) Sample(n int) string {
	if len(s.tags) == 0 || n <= 0 {
		return ""
	}
	if n > len(s.tags) {
		n = len(s.tags)
	}

	idx := make([]int, len(s.tags))
	for i := range idx {
		idx[i] = i
	}
	s.shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	picked := make([]string, n)
	for i := 0; i < n; i++ {
		picked[i] = s.tags[idx[i]]
	}
	return strings.Join(picked, " ")
}
