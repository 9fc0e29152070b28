package presentation

import "strings"

type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
)

// NarrativeBlock is one rendered line of narrative text
type NarrativeBlock struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// FormatNarrative splits text into lines. A line both starting and ending with
// "**" becomes a heading with the delimiters removed; anything else, blank
// lines included, becomes a paragraph.
func FormatNarrative(text string) []NarrativeBlock {
	lines := strings.Split(text, "\n")
	blocks := make([]NarrativeBlock, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") {
			title := ""
			if len(line) >= 4 {
				title = line[2 : len(line)-2]
			}
			blocks = append(blocks, NarrativeBlock{Kind: BlockHeading, Text: title})
			continue
		}
		blocks = append(blocks, NarrativeBlock{Kind: BlockParagraph, Text: line})
	}
	return blocks
}
