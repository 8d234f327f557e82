package classify

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecMu      sync.RWMutex
	defaultCodec tokenizer.Codec
)

// InitTokenizer prepares the shared codec used for prompt token counts.
// Common encodings: "cl100k_base" (GPT-4 family), "o200k_base" (GPT-4o).
// An empty encoding defaults to cl100k_base, a reasonable approximation
// for most open-weight chat models served behind vLLM.
func InitTokenizer(encoding string) error {
	codecMu.Lock()
	defer codecMu.Unlock()

	var enc tokenizer.Encoding
	switch encoding {
	case "", "cl100k_base":
		enc = tokenizer.Cl100kBase
	case "p50k_base":
		enc = tokenizer.P50kBase
	case "p50k_edit":
		enc = tokenizer.P50kEdit
	case "r50k_base":
		enc = tokenizer.R50kBase
	case "o200k_base":
		enc = tokenizer.O200kBase
	default:
		enc = tokenizer.Cl100kBase
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return err
	}
	defaultCodec = codec
	return nil
}

// CountTokens returns the token count for text, or -1 when the codec is
// not initialized or encoding fails, so callers can distinguish
// "not available" from a real zero count.
func CountTokens(text string) int {
	codecMu.RLock()
	defer codecMu.RUnlock()

	if defaultCodec == nil {
		return -1
	}
	ids, _, err := defaultCodec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}
