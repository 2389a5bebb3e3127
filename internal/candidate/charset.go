package candidate

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	Lower  = "abcdefghijklmnopqrstuvwxyz"
	Upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits = "0123456789"
	Symbol = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var ErrCharset = errors.New("invalid charset enumeration")

var presets = map[string]string{
	"lower":  Lower,
	"upper":  Upper,
	"digits": Digits,
	"symbol": Symbol,
	"alpha":  Lower + Upper,
	"alnum":  Lower + Upper + Digits,
}

// DefaultCharset is lowercase letters followed by digits.
const DefaultCharset = Lower + Digits

// ResolveCharset expands preset names joined with '+' ("lower+digits").
// Anything that is not entirely made of preset names is taken literally.
func ResolveCharset(spec string) string {
	if spec == "" {
		return DefaultCharset
	}
	var b strings.Builder
	for _, part := range strings.Split(spec, "+") {
		alphabet, ok := presets[part]
		if !ok {
			return spec
		}
		b.WriteString(alphabet)
	}
	return b.String()
}

// Charset enumerates every string over an alphabet with length in
// [min, max], shortest first, lexicographic by alphabet order within a
// length.
type Charset struct {
	alphabet []rune
	min, max int
}

// NewCharset deduplicates alphabet, keeping first occurrences in order.
func NewCharset(alphabet string, min, max int) (*Charset, error) {
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: length range [%d, %d]", ErrCharset, min, max)
	}
	seen := make(map[rune]bool)
	var runes []rune
	for _, r := range alphabet {
		if !seen[r] {
			seen[r] = true
			runes = append(runes, r)
		}
	}
	if len(runes) == 0 && max > 0 {
		return nil, fmt.Errorf("%w: empty alphabet", ErrCharset)
	}
	return &Charset{alphabet: runes, min: min, max: max}, nil
}

func (c *Charset) Alphabet() string {
	return string(c.alphabet)
}

func (c *Charset) All() Source {
	return func(yield func(string) bool) {
		for length := c.min; length <= c.max; length++ {
			if !c.each(length, yield) {
				return
			}
		}
	}
}

func (c *Charset) each(length int, yield func(string) bool) bool {
	if length == 0 {
		return yield("")
	}
	indices := make([]int, length)
	buf := make([]rune, length)
	for i := range buf {
		buf[i] = c.alphabet[0]
	}
	for {
		if !yield(string(buf)) {
			return false
		}
		pos := length - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(c.alphabet) {
				buf[pos] = c.alphabet[indices[pos]]
				break
			}
			indices[pos] = 0
			buf[pos] = c.alphabet[0]
			pos--
		}
		if pos < 0 {
			return true
		}
	}
}

// Count returns the number of candidates All yields, or -1 if it
// overflows int64.
func (c *Charset) Count() int64 {
	n := int64(len(c.alphabet))
	var total int64
	for length := c.min; length <= c.max; length++ {
		p := int64(1)
		for i := 0; i < length; i++ {
			if n != 0 && p > math.MaxInt64/n {
				return -1
			}
			p *= n
		}
		if total > math.MaxInt64-p {
			return -1
		}
		total += p
	}
	return total
}
