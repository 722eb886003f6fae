package recap

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer token 计数器，支持 tiktoken 和启发式回退
// Tokenizer counts prompt tokens with tiktoken and falls back to a heuristic
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.RWMutex
}

// NewTokenizer 创建 tokenizer，tiktoken 初始化失败时回退到启发式
// NewTokenizer creates a tokenizer, falling back to the heuristic when
// tiktoken cannot load its encoding
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// 离线环境可能没有 BPE 缓存 / offline machines may lack the BPE cache
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// NewTokenizerForModel 根据模型名选择编码 / picks the encoding from the model name
func NewTokenizerForModel(model string) *Tokenizer {
	return NewTokenizer(modelToEncoding(model))
}

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

func (t *Tokenizer) EncodingName() string {
	return t.encodingName
}

// Trim 按行截断文本，使其不超过 budget 个 token
// Trim drops whole trailing lines until text fits in budget tokens. A
// budget <= 0 disables trimming.
func (t *Tokenizer) Trim(text string, budget int) (string, bool) {
	if budget <= 0 || t.CountText(text) <= budget {
		return text, false
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		out := strings.Join(lines, "\n")
		if t.CountText(out) <= budget {
			return out, true
		}
	}
	// 单行仍然过长，按字符截断 / a single long line is cut by runes
	runes := []rune(lines[0])
	for len(runes) > 0 && t.CountText(string(runes)) > budget {
		cut := len(runes) / 8
		if cut < 1 {
			cut = 1
		}
		runes = runes[:len(runes)-cut]
	}
	return string(runes), true
}

// heuristicTokenCount 启发式估算：CJK 约 1.5 token/字，ASCII 约 4 字符/token
// heuristicTokenCount estimates ~1.5 tokens per CJK rune and ~4 ASCII chars per token
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	cjk, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	estimate := int(float64(cjk)*1.5 + float64(other)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
