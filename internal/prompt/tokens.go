// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prompt

import (
	"sync"
	"unicode"

	"github.com/tiktoken-go/tokenizer"
)

// Token estimation methods.
const (
	// MethodSimple approximates with words * 1.3. Fast, no table loading.
	MethodSimple = "simple"

	// MethodTiktoken counts against the cl100k_base BPE vocabulary.
	MethodTiktoken = "tiktoken"
)

// TokenEstimator estimates the token count of prompt content before it
// leaves the daemon. The estimate feeds request logging and lets operators
// spot prompts that have grown past what a fast completion budget allows.
type TokenEstimator struct {
	method string

	once  sync.Once
	codec tokenizer.Codec
}

// NewTokenEstimator creates an estimator using the given method. Invalid
// methods fall back to MethodSimple.
func NewTokenEstimator(method string) *TokenEstimator {
	if method != MethodSimple && method != MethodTiktoken {
		method = MethodSimple
	}
	return &TokenEstimator{method: method}
}

// Method returns the estimation method in use.
func (te *TokenEstimator) Method() string {
	return te.method
}

// EstimateTokens estimates the number of tokens in content. The tiktoken
// codec loads lazily on first use; if loading or encoding fails, the simple
// approximation answers instead so estimation never errors.
func (te *TokenEstimator) EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	if te.method == MethodTiktoken {
		te.once.Do(func() {
			if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
				te.codec = codec
			}
		})
		if te.codec != nil {
			if n, err := te.codec.Count(content); err == nil {
				return n
			}
		}
	}
	// Most tokenizers land near 1.3 tokens per word on shell-ish text.
	return int(float64(countWords(content)) * 1.3)
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
