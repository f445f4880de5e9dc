package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultMaxChars = 900
	DefaultOverlap  = 150
)

type Config struct {
	// MaxChars bounds the rune length of a single chunk.
	MaxChars int
	// Overlap is the number of trailing runes repeated at the head of the
	// next chunk so retrieval keeps context across boundaries. Must be
	// smaller than MaxChars.
	Overlap int
}

func (c Config) normalized() Config {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.MaxChars {
		c.Overlap = c.MaxChars - 1
	}
	return c
}

// Candidate is a chunk before it has an embedding or a database row.
type Candidate struct {
	Text       string
	Index      int
	PageNumber int
	Metadata   map[string]string
}

var (
	spacesRe   = regexp.MustCompile(`[ \t]+`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
	crRe       = regexp.MustCompile(`\r\n?`)
)

// Clean normalizes text before splitting: NUL bytes become spaces, runs of
// tabs/spaces collapse to one space, CRLF/CR become LF, and at most two
// consecutive newlines survive.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = crRe.ReplaceAllString(text, "\n")
	text = spacesRe.ReplaceAllString(text, " ")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split cuts cleaned text into a sliding window of rune-bounded segments.
// Identical input and config always produce an identical sequence; the
// ingest checksum dedup depends on that. Empty or whitespace-only input
// yields no segments.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalized()
	runes := []rune(strings.TrimSpace(text))
	size := len(runes)
	if size == 0 {
		return nil
	}
	if size <= cfg.MaxChars {
		return []string{string(runes)}
	}
	var segments []string
	start := 0
	for start < size {
		end := start + cfg.MaxChars
		if end > size {
			end = size
		}
		segment := strings.TrimSpace(string(runes[start:end]))
		if segment != "" {
			segments = append(segments, segment)
		}
		if end >= size {
			break
		}
		start = end - cfg.Overlap
		if start < 0 {
			start = 0
		}
	}
	return segments
}

type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.normalized()}
}

func (c *Chunker) Config() Config {
	return c.cfg
}

// ChunkPage cleans and splits one page of text. Indices start at baseIndex
// and increase in reading order; the caller threads baseIndex across pages
// so (document, index) stays unique and ordered.
func (c *Chunker) ChunkPage(text string, pageNumber int, baseIndex int, meta map[string]string) []Candidate {
	segments := Split(Clean(text), c.cfg)
	if len(segments) == 0 {
		return nil
	}
	candidates := make([]Candidate, 0, len(segments))
	for i, segment := range segments {
		md := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			if k == "" || v == "" {
				continue
			}
			md[k] = v
		}
		if pageNumber > 0 {
			md["page"] = strconv.Itoa(pageNumber)
		}
		candidates = append(candidates, Candidate{
			Text:       segment,
			Index:      baseIndex + i,
			PageNumber: pageNumber,
			Metadata:   md,
		})
	}
	return candidates
}
