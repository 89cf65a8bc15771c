package rag

import (
	"strings"
)

const codeFence = "```"

// ChunkerConfig controls how markdown documents are split into fragments
type ChunkerConfig struct {
	ChunkSize       int // target window size in characters
	ChunkOverlap    int // characters shared between consecutive windows
	KeepWholeBelow  int // sections with balanced code under this size stay whole
	ContinuedMarker string
}

// DefaultChunkerConfig returns the default configuration
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:       1000,
		ChunkOverlap:    200,
		KeepWholeBelow:  1500,
		ContinuedMarker: "*(code continues)*",
	}
}

// Chunk is one piece of a document with its section heading
type Chunk struct {
	Heading string
	Text    string
	Index   int
}

// Chunker splits markdown into retrievable chunks.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker creates a chunker; zero sizes fall back to the defaults
func NewChunker(cfg ChunkerConfig) *Chunker {
	def := DefaultChunkerConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.KeepWholeBelow <= 0 {
		cfg.KeepWholeBelow = def.KeepWholeBelow
	}
	if cfg.ContinuedMarker == "" {
		cfg.ContinuedMarker = def.ContinuedMarker
	}
	return &Chunker{cfg: cfg}
}

// Split breaks a markdown document into chunks. Sections are cut at headers;
// a section whose code fences are balanced and which is short enough stays
// whole, anything else is windowed with overlap.
func (c *Chunker) Split(markdown string) []Chunk {
	var chunks []Chunk
	for _, sec := range splitSections(markdown) {
		text := strings.TrimSpace(sec.text)
		if text == "" {
			continue
		}
		fences := strings.Count(text, codeFence)
		if fences > 0 && fences%2 == 0 && len(text) < c.cfg.KeepWholeBelow {
			chunks = append(chunks, Chunk{Heading: sec.heading, Text: text})
			continue
		}
		if len(text) <= c.cfg.ChunkSize {
			chunks = append(chunks, Chunk{Heading: sec.heading, Text: c.closeFence(text)})
			continue
		}
		for _, w := range c.windows(text) {
			chunks = append(chunks, Chunk{Heading: sec.heading, Text: c.closeFence(w)})
		}
	}
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func (c *Chunker) closeFence(text string) string {
	if strings.Count(text, codeFence)%2 != 0 {
		return text + "\n" + codeFence + "\n\n" + c.cfg.ContinuedMarker
	}
	return text
}

// windows cuts text into overlapping windows, preferring to end on a line break.
func (c *Chunker) windows(text string) []string {
	var out []string
	start := 0
	for start < len(text) {
		end := start + c.cfg.ChunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		if nl := strings.LastIndexByte(text[start:end], '\n'); nl > c.cfg.ChunkSize/2 {
			end = start + nl
		}
		end = runeBoundary(text, end)
		out = append(out, text[start:end])

		next := runeBoundary(text, end-c.cfg.ChunkOverlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// runeBoundary moves i back to the start of a UTF-8 sequence.
func runeBoundary(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && s[i]&0xC0 == 0x80 {
		i--
	}
	return i
}

type section struct {
	heading string
	text    string
}

// splitSections cuts at markdown headers that are not inside a code fence.
func splitSections(markdown string) []section {
	var (
		sections []section
		current  section
		buf      strings.Builder
		inFence  bool
	)
	flush := func() {
		current.text = buf.String()
		sections = append(sections, current)
		buf.Reset()
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, codeFence) {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, codeFence) {
			if buf.Len() > 0 {
				flush()
			}
			current = section{heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if buf.Len() > 0 {
		flush()
	}
	return sections
}
