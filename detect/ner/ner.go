//go:build ner

// Package ner provides an ONNX-based named entity recognition provider
// for detect. It runs a BERT-style token classification model (BIO
// tagging) and maps predicted token runs back to byte spans in the
// input text.
//
// The package requires the "ner" build tag and the onnxruntime shared
// library; without the tag a stub returns ErrNERNotEnabled.
package ner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tsawler/veil/detect"
)

// DefaultSeqLen is the model sequence length used when Load is given
// zero.
const DefaultSeqLen = 256

// labelEntity maps common CoNLL-style tag suffixes to the entity names
// used by the rest of the library. Unknown suffixes pass through as-is.
var labelEntity = map[string]string{
	"PER":  "PERSON",
	"ORG":  "ORGANIZATION",
	"LOC":  "LOCATION",
	"DATE": "DATE_TIME",
}

// Provider runs token-classification NER through onnxruntime. It
// implements detect.Provider and is safe for concurrent use.
type Provider struct {
	session   *ort.AdvancedSession
	tokenizer *wordPieceTokenizer
	labels    []string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// Load initializes the ONNX session and tokenizer from a bundle
// directory containing model.onnx, label_map.json and
// tokenizer/vocab.txt.
func Load(bundleDir string, seqLen int) (*Provider, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if seqLen <= 0 {
		seqLen = DefaultSeqLen
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(bundleDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	labels, err := loadLabels(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	tokenizer, err := loadWordPieceTokenizer(filepath.Join(bundleDir, "tokenizer", "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Provider{
		session:       session,
		tokenizer:     tokenizer,
		labels:        labels,
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// Close releases the ONNX session and tensors.
func (m *Provider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{m.inputIDs, m.attentionMask} {
		if t != nil {
			t.Destroy()
		}
	}
	if m.output != nil {
		m.output.Destroy()
	}
	return nil
}

// Analyze tokenizes the text, runs inference, and decodes the BIO tag
// sequence into entity spans. Text beyond the model's sequence length is
// not analyzed; run long documents through the chunk package first.
func (m *Provider) Analyze(text, language string) ([]detect.Span, error) {
	_ = language
	if m == nil || m.session == nil {
		return nil, errors.New("ner provider not initialized")
	}

	tokens := m.tokenizer.encode(text, m.seqLen)

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.inputIDs.GetData()
	mask := m.attentionMask.GetData()
	for i := 0; i < m.seqLen; i++ {
		if i < len(tokens) {
			ids[i] = tokens[i].id
			mask[i] = 1
		} else {
			ids[i] = m.tokenizer.padID
			mask[i] = 0
		}
	}

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	logits := m.output.GetData()
	numLabels := len(m.labels)

	type tagged struct {
		tok   token
		label string
		prob  float64
	}
	var seq []tagged
	for i, t := range tokens {
		if t.start < 0 {
			continue // special token
		}
		off := i * numLabels
		if off+numLabels > len(logits) {
			break
		}
		idx, prob := argmaxSoftmax(logits[off : off+numLabels])
		seq = append(seq, tagged{tok: t, label: m.labels[idx], prob: prob})
	}

	var spans []detect.Span
	var cur *detect.Span
	var probSum float64
	var probN int

	flush := func() {
		if cur != nil && probN > 0 {
			cur.Score = probSum / float64(probN)
			spans = append(spans, *cur)
		}
		cur = nil
		probSum, probN = 0, 0
	}

	for _, t := range seq {
		prefix, suffix, ok := splitBIO(t.label)
		if !ok {
			flush()
			continue
		}
		entity := suffix
		if mapped, found := labelEntity[suffix]; found {
			entity = mapped
		}

		if prefix == "B" || cur == nil || cur.EntityType != entity {
			flush()
			cur = &detect.Span{EntityType: entity, Start: t.tok.start, End: t.tok.end}
		} else {
			cur.End = t.tok.end
		}
		probSum += t.prob
		probN++
	}
	flush()

	detect.SortSpans(spans)
	return spans, nil
}

// splitBIO parses "B-PER" style labels; "O" and malformed labels return
// ok=false.
func splitBIO(label string) (prefix, suffix string, ok bool) {
	if label == "O" || label == "" {
		return "", "", false
	}
	i := strings.IndexByte(label, '-')
	if i <= 0 || i == len(label)-1 {
		return "", "", false
	}
	return label[:i], label[i+1:], true
}

// argmaxSoftmax returns the index of the largest logit and its softmax
// probability.
func argmaxSoftmax(logits []float32) (int, float64) {
	maxIdx := 0
	maxVal := logits[0]
	for i, v := range logits {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}

	var denom float64
	for _, v := range logits {
		denom += math.Exp(float64(v - maxVal))
	}
	return maxIdx, 1.0 / denom
}

// loadLabels reads label_map.json: either a JSON array of labels or an
// object of index strings to labels.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// resolveSharedLibraryPath locates the onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names and
// locations are probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
