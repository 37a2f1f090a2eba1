package enhancer

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyResponse   = errors.New("empty response from model")
	ErrUnparsableScore = errors.New("unparsable relevance score")
	ErrUnknownVerdict  = errors.New("unknown quality verdict")
)

// Outcome is the result of one LLM-backed step: a value or the reason there is none.
type Outcome[T any] struct {
	Value T
	Err   error
}

func Success[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

func Failure[T any](err error) Outcome[T] { return Outcome[T]{Err: err} }

func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Or returns the value, or fallback when the step failed.
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}

var (
	outOfTenPattern = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)\s*(?:/|out of)\s*10(?:\.0+)?$`)
	labelledPattern = regexp.MustCompile(`(?i)\b(?:relevance score|score|rating)\s*[:=]\s*([-+]?\d+(?:\.\d+)?)\b`)
)

// ParseScore reads a relevance score and clamps it to [0,10]. Accepted forms
// are a bare number, "N/10" or "N out of 10", and a number after a score label.
// Any other text is unparsable: numbers elsewhere in a reply are too often the
// scale itself.
func ParseScore(text string) Outcome[float64] {
	text = strings.Trim(strings.TrimSpace(text), "*`\"'")
	text = strings.TrimSuffix(text, ".")
	if text == "" {
		return Failure[float64](ErrEmptyResponse)
	}

	raw := text
	if m := outOfTenPattern.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := labelledPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		raw = m[len(m)-1][1]
	}

	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return Failure[float64](ErrUnparsableScore)
	}

	return Success(math.Max(0, math.Min(MaxScore, score)))
}

type Verdict int

const (
	Keep Verdict = iota
	Filter
)

func (v Verdict) String() string {
	if v == Filter {
		return "FILTER"
	}
	return "KEEP"
}

// ParseVerdict reads a FILTER/KEEP answer. Anything else is a failure, which
// callers treat as keep.
func ParseVerdict(text string) Outcome[Verdict] {
	normalized := strings.ToUpper(strings.Trim(strings.TrimSpace(text), ".\"'`*"))
	switch normalized {
	case "FILTER":
		return Success(Filter)
	case "KEEP":
		return Success(Keep)
	case "":
		return Failure[Verdict](ErrEmptyResponse)
	default:
		return Failure[Verdict](ErrUnknownVerdict)
	}
}

// TruncateTokens keeps at most n whitespace-separated tokens.
func TruncateTokens(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// prefixRunes returns at most n characters of s.
func prefixRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
