// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"strings"
	"unicode"

	"github.com/northbound/ragcore/internal/model"
)

// chunkResult is one chunk's text plus any block-level metadata it
// inherited (page number, sheet name, slide index).
type chunkResult struct {
	text string
	meta model.Metadata
}

// approxTokens estimates token count the way most tokenizer-free
// chunkers do: whitespace-separated words, close enough for a budget
// that only needs to be roughly even.
func approxTokens(s string) int {
	return len(strings.Fields(s))
}

// splitSentences breaks text at sentence boundaries (. ! ? followed by
// whitespace) without pulling in a sentence-segmentation dependency;
// good enough for the mostly well-formed prose this system ingests.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			next := i + 1
			if next >= len(runes) || unicode.IsSpace(runes[next]) {
				sentences = append(sentences, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		sentences = append(sentences, strings.TrimSpace(cur.String()))
	}
	return sentences
}

// chunkBlocks packs structural blocks into chunks of roughly
// tokenBudget words each, snapping to sentence boundaries and never
// splitting a block across chunks unless the block alone exceeds the
// budget. overlap words of trailing context carry into the next
// chunk; at a block boundary they are carried only when they fit
// together with the whole next block, generalizing internal/parser/chunker.go's fixed
// character-window slide into a token-budgeted, boundary-aware one
// per spec 4.E.
func chunkBlocks(blocks []block, tokenBudget, overlap int) []chunkResult {
	var results []chunkResult
	var cur strings.Builder
	var curTokens int
	var curMeta model.Metadata

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text == "" {
			return
		}
		results = append(results, chunkResult{text: text, meta: curMeta})
		cur.Reset()
		curTokens = 0
		curMeta = nil
	}

	appendWithOverlap := func(tail, next string, meta model.Metadata) {
		cur.WriteString(tail)
		curTokens = approxTokens(tail)
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(next)
		curTokens += approxTokens(next)
		curMeta = meta
	}

	for _, b := range blocks {
		sentences := splitSentences(b.text)
		if len(sentences) == 0 {
			continue
		}
		if bTokens := approxTokens(b.text); curTokens > 0 && bTokens <= tokenBudget && curTokens+bTokens > tokenBudget {
			tail := overlapTail(cur.String(), overlap)
			flush()
			if approxTokens(tail)+bTokens <= tokenBudget {
				cur.WriteString(tail)
				curTokens = approxTokens(tail)
			}
		}
		for _, s := range sentences {
			sTokens := approxTokens(s)
			if curTokens > 0 && curTokens+sTokens > tokenBudget {
				tail := overlapTail(cur.String(), overlap)
				flush()
				appendWithOverlap(tail, s, b.meta)
				continue
			}
			if cur.Len() > 0 {
				cur.WriteString(" ")
			}
			cur.WriteString(s)
			curTokens += sTokens
			curMeta = b.meta
		}
	}
	flush()
	return results
}

// overlapTail returns roughly the last n words of s, used to seed the
// next chunk with trailing context from the one just flushed.
func overlapTail(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[len(words)-n:], " ")
}
