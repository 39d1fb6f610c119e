package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	clsTokenID = 101
	sepTokenID = 102
)

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs, used when no vocab file
// is configured.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := SplitWords(strings.ToLower(text))
	ids := make([]int64, len(words))
	for i, w := range words {
		ids[i] = int64(HashString(w) % 30000)
	}
	return frame(ids, clsTokenID, sepTokenID, 0, maxTokens)
}

// WordPieceTokenizer is a BERT uncased WordPiece tokenizer driven by a vocab.txt file
// (one token per line, line number is the ID).
type WordPieceTokenizer struct {
	vocab   map[string]int64
	unkID   int64
	clsID   int64
	sepID   int64
	padID   int64
	maxWord int
}

// LoadWordPieceTokenizer reads a BERT vocab file.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), "\r")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPieceTokenizer(vocab)
}

// NewWordPieceTokenizer builds a tokenizer from an in-memory vocab. The vocab must contain
// [UNK], [CLS], and [SEP]; [PAD] defaults to 0.
func NewWordPieceTokenizer(vocab map[string]int64) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: vocab, maxWord: 100}
	for _, special := range []struct {
		token string
		dst   *int64
	}{{"[UNK]", &t.unkID}, {"[CLS]", &t.clsID}, {"[SEP]", &t.sepID}} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", special.token)
		}
		*special.dst = id
	}
	t.padID = vocab["[PAD]"]
	return t, nil
}

// Tokenize lowercases, splits on whitespace and punctuation, and applies greedy longest-match
// WordPiece. Output is [CLS] tokens [SEP] padded to maxTokens.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicTokens(strings.ToLower(text)) {
		ids = append(ids, t.wordPiece(word)...)
	}
	return frame(ids, t.clsID, t.sepID, t.padID, maxTokens)
}

func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > t.maxWord {
		return []int64{t.unkID}
	}
	var out []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match int64 = -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			return []int64{t.unkID}
		}
		out = append(out, match)
		start = end
	}
	return out
}

// basicTokens splits on whitespace and isolates each punctuation rune.
func basicTokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// frame wraps ids in cls/sep, truncating and padding to maxTokens.
func frame(ids []int64, cls, sep, pad int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = pad
	}

	inputIDs[0] = cls
	attentionMask[0] = 1
	pos := 1
	for _, id := range ids {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = id
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sep
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on Unicode whitespace and returns non-empty words.
func SplitWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		h = 0
	}
	return h
}
