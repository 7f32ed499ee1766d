package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Built-in tool names. The model capability catalog decides which models
// may invoke each of them.
const (
	ToolWebSearch  = "web_search"
	ToolMapsLookup = "maps_lookup"
	ToolCalculator = "calculator"
)

// webSearchHandler answers a search invocation. There is no live search
// backend wired in, so the result instructs the model to answer from its
// own knowledge instead of stalling the stream.
func webSearchHandler(_ context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query", "q")
	if query == "" {
		return "", fmt.Errorf("web_search requires a query argument")
	}
	return fmt.Sprintf("Search results for %q are unavailable; answer from general knowledge and say so if the information may be outdated.", query), nil
}

// mapsLookupHandler resolves a place lookup the same way.
func mapsLookupHandler(_ context.Context, args map[string]any) (string, error) {
	place := stringArg(args, "place", "location", "address")
	if place == "" {
		return "", fmt.Errorf("maps_lookup requires a place argument")
	}
	return fmt.Sprintf("No live map data for %q; describe the location from general knowledge.", place), nil
}

// calculatorHandler evaluates a basic arithmetic expression with the four
// operators and standard precedence. No parentheses.
func calculatorHandler(_ context.Context, args map[string]any) (string, error) {
	expr := stringArg(args, "expression", "expr")
	if expr == "" {
		return "", fmt.Errorf("calculator requires an expression argument")
	}
	value, err := evaluate(expr)
	if err != nil {
		return "", fmt.Errorf("cannot evaluate %q: %w", expr, err)
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens)%2 == 0 || len(tokens) == 0 {
		return 0, fmt.Errorf("malformed expression")
	}

	// First pass collapses * and /.
	var collapsed []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok != "*" && tok != "/" {
			collapsed = append(collapsed, tok)
			continue
		}
		left, err := strconv.ParseFloat(collapsed[len(collapsed)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed expression")
		}
		right, err := strconv.ParseFloat(tokens[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed expression")
		}
		i++
		if tok == "/" {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		} else {
			left *= right
		}
		collapsed[len(collapsed)-1] = strconv.FormatFloat(left, 'f', -1, 64)
	}

	// Second pass folds + and - left to right.
	total, err := strconv.ParseFloat(collapsed[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed expression")
	}
	for i := 1; i < len(collapsed); i += 2 {
		right, err := strconv.ParseFloat(collapsed[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed expression")
		}
		switch collapsed[i] {
		case "+":
			total += right
		case "-":
			total -= right
		default:
			return 0, fmt.Errorf("unsupported operator %q", collapsed[i])
		}
	}
	return total, nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	var number strings.Builder
	for _, r := range strings.ReplaceAll(expr, " ", "") {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			number.WriteRune(r)
		case r == '+' || r == '-' || r == '*' || r == '/':
			if number.Len() == 0 {
				return nil, fmt.Errorf("unexpected operator %q", r)
			}
			tokens = append(tokens, number.String(), string(r))
			number.Reset()
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	if number.Len() == 0 {
		return nil, fmt.Errorf("malformed expression")
	}
	tokens = append(tokens, number.String())
	return tokens, nil
}
