//go:build ner

package ner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxWordChars caps the length of a word eligible for WordPiece
// matching; longer words map straight to [UNK].
const maxWordChars = 100

// token is a single model input token. start/end are byte offsets into
// the original text; special tokens carry -1 for both.
type token struct {
	id    int64
	start int
	end   int
}

// wordPieceTokenizer implements greedy longest-match WordPiece over an
// uncased BERT vocabulary, tracking byte offsets for every subword.
type wordPieceTokenizer struct {
	vocab map[string]int64
	unkID int64
	clsID int64
	sepID int64
	padID int64
}

// loadWordPieceTokenizer reads a vocab.txt, one token per line, line
// number as token id.
func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), "\r\n")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	t := &wordPieceTokenizer{vocab: vocab}
	for _, special := range []struct {
		name string
		dst  *int64
	}{
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
		{"[PAD]", &t.padID},
	} {
		v, ok := vocab[special.name]
		if !ok {
			return nil, fmt.Errorf("vocabulary missing %s", special.name)
		}
		*special.dst = v
	}
	return t, nil
}

// wordRun is a whitespace-delimited word split further on punctuation,
// with byte offsets into the source text.
type wordRun struct {
	text  string
	start int
	end   int
}

// encode produces [CLS] word-pieces... [SEP], truncated to maxLen.
func (t *wordPieceTokenizer) encode(text string, maxLen int) []token {
	tokens := make([]token, 0, maxLen)
	tokens = append(tokens, token{id: t.clsID, start: -1, end: -1})

	for _, run := range splitRuns(text) {
		pieces := t.wordPieces(run)
		// Reserve room for the trailing [SEP].
		if len(tokens)+len(pieces) > maxLen-1 {
			break
		}
		tokens = append(tokens, pieces...)
	}

	tokens = append(tokens, token{id: t.sepID, start: -1, end: -1})
	return tokens
}

// splitRuns performs basic tokenization: split on whitespace, then
// break out punctuation as standalone runs.
func splitRuns(text string) []wordRun {
	var runs []wordRun
	runStart := -1

	flush := func(end int) {
		if runStart >= 0 {
			runs = append(runs, wordRun{text: text[runStart:end], start: runStart, end: end})
			runStart = -1
		}
	}

	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush(i)
			next := i + len(string(r))
			runs = append(runs, wordRun{text: text[i:next], start: i, end: next})
		default:
			if runStart < 0 {
				runStart = i
			}
		}
	}
	flush(len(text))
	return runs
}

// wordPieces applies greedy longest-match subword splitting to one run.
// Lookups are lowercased; offsets refer to the original text.
func (t *wordPieceTokenizer) wordPieces(run wordRun) []token {
	lower := strings.ToLower(run.text)
	if len([]rune(lower)) > maxWordChars {
		return []token{{id: t.unkID, start: run.start, end: run.end}}
	}

	var pieces []token
	pos := 0
	for pos < len(lower) {
		end := len(lower)
		matchID := int64(-1)
		for end > pos {
			candidate := lower[pos:end]
			if pos > 0 {
				candidate = "##" + candidate
			}
			if id, ok := t.vocab[candidate]; ok {
				matchID = id
				break
			}
			// Back off one rune at a time.
			_, size := utf8.DecodeLastRuneInString(lower[pos:end])
			end -= size
		}
		if matchID < 0 {
			// No subword matches: the whole word becomes [UNK].
			return []token{{id: t.unkID, start: run.start, end: run.end}}
		}
		pieces = append(pieces, token{
			id:    matchID,
			start: run.start + pos,
			end:   run.start + end,
		})
		pos = end
	}
	return pieces
}
